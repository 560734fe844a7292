package tools

import "testing"

func TestCatalogCoversEveryGovernedTool(t *testing.T) {
	wantNames := []string{
		"health", "netsuite.suiteql", "netsuite.suiteql_stub", "netsuite.connectivity",
		"data.sample_table_read", "recon.run", "report.export", "schedule.create",
		"schedule.list", "schedule.run", "workspace.list_files", "workspace.read_file",
		"workspace.search", "workspace.propose_patch", "workspace.apply_patch",
		"workspace.run_validate", "workspace.run_unit_tests",
		"workspace.run_suiteql_assertions", "workspace.deploy_sandbox",
	}

	catalog := Catalog()
	if len(catalog) != len(wantNames) {
		t.Fatalf("expected %d catalog entries, got %d", len(wantNames), len(catalog))
	}

	byName := make(map[string]bool, len(catalog))
	for _, d := range catalog {
		byName[d.Name] = true
	}
	for _, name := range wantNames {
		if !byName[name] {
			t.Errorf("expected catalog to contain %s", name)
		}
	}
}

func TestCatalogSuiteQLHasGovernedRateLimitAndRowLimitParams(t *testing.T) {
	for _, d := range Catalog() {
		if d.Name != "netsuite.suiteql" {
			continue
		}
		if d.RateLimitPerMinute != 30 || d.TimeoutSeconds != 30 {
			t.Errorf("unexpected governance metadata for netsuite.suiteql: %+v", d)
		}
		if !d.HasQueryParam || d.QueryParamName != "query" {
			t.Error("expected netsuite.suiteql to declare its query param for the row-limit policy check")
		}
		if spec, ok := d.Params["limit"]; !ok || spec.Default != 100 || spec.Max != 1000 {
			t.Errorf("expected limit param default 100 max 1000, got %+v", spec)
		}
		return
	}
	t.Fatal("netsuite.suiteql not found in catalog")
}

func TestCatalogMarksMutatingTools(t *testing.T) {
	mutating := map[string]bool{
		"recon.run": true, "schedule.create": true, "schedule.run": true,
		"workspace.propose_patch": true, "workspace.apply_patch": true,
		"workspace.deploy_sandbox": true,
	}
	for _, d := range Catalog() {
		if mutating[d.Name] && !d.Mutates {
			t.Errorf("expected %s to be marked Mutates", d.Name)
		}
		if !mutating[d.Name] && d.Mutates {
			t.Errorf("did not expect %s to be marked Mutates", d.Name)
		}
	}
}
