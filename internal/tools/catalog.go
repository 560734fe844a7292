package tools

import "github.com/netsuite-assist/coordinator/pkg/models"

func param(typ string, required bool) models.ParamSpec {
	return models.ParamSpec{Type: typ, Required: required}
}

func limitParam(def, max int) models.ParamSpec {
	return models.ParamSpec{Type: "int", Default: def, Max: max}
}

// Catalog returns the static descriptor for every local tool this system
// exposes, with the timeouts and per-minute rate limits the governance
// engine enforces for each. Handlers are wired in by the component that
// implements them (specialist tools, changeset tools, sandbox tools,
// assertion tools); Catalog only fixes the shared, governed metadata.
func Catalog() []models.ToolDescriptor {
	return []models.ToolDescriptor{
		{
			Name:               "health",
			Params:             map[string]models.ParamSpec{},
			RateLimitPerMinute: 60,
		},
		{
			Name: "netsuite.suiteql",
			Params: map[string]models.ParamSpec{
				"query": param("string", true),
				"limit": limitParam(100, 1000),
			},
			TimeoutSeconds:     30,
			RateLimitPerMinute: 30,
			HasQueryParam:      true,
			QueryParamName:     "query",
		},
		{
			Name: "netsuite.suiteql_stub",
			Params: map[string]models.ParamSpec{
				"query": param("string", true),
				"limit": limitParam(100, 1000),
			},
			TimeoutSeconds:     30,
			RateLimitPerMinute: 30,
			HasQueryParam:      true,
			QueryParamName:     "query",
		},
		{
			Name:               "netsuite.connectivity",
			Params:             map[string]models.ParamSpec{},
			TimeoutSeconds:     15,
			RateLimitPerMinute: 10,
		},
		{
			Name: "data.sample_table_read",
			Params: map[string]models.ParamSpec{
				"table_name": param("string", true),
				"limit":      limitParam(100, 1000),
			},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 30,
		},
		{
			Name: "recon.run",
			Params: map[string]models.ParamSpec{
				"date_from":  param("string", true),
				"date_to":    param("string", true),
				"payout_ids": param("array", false),
			},
			TimeoutSeconds:     120,
			RateLimitPerMinute: 10,
			Mutates:            true,
		},
		{
			Name: "report.export",
			Params: map[string]models.ParamSpec{
				"report_type": param("string", true),
				"format":      param("string", true),
				"filters":     param("object", false),
			},
			TimeoutSeconds:     60,
			RateLimitPerMinute: 20,
		},
		{
			Name: "schedule.create",
			Params: map[string]models.ParamSpec{
				"name":          param("string", true),
				"schedule_type": param("string", true),
				"cron":          param("string", true),
				"params":        param("object", false),
			},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 10,
			Mutates:            true,
		},
		{
			Name:               "schedule.list",
			Params:             map[string]models.ParamSpec{},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 30,
		},
		{
			Name: "schedule.run",
			Params: map[string]models.ParamSpec{
				"schedule_id": param("string", true),
			},
			TimeoutSeconds:     30,
			RateLimitPerMinute: 10,
			Mutates:            true,
		},
		{
			Name: "workspace.list_files",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"directory":    param("string", false),
				"recursive":    param("bool", false),
				"limit":        limitParam(100, 1000),
			},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 60,
		},
		{
			Name: "workspace.read_file",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"file_id":      param("string", true),
				"line_start":   param("int", false),
				"line_end":     param("int", false),
			},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 120,
		},
		{
			Name: "workspace.search",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"query":        param("string", true),
				"search_type":  param("string", false),
				"limit":        limitParam(100, 1000),
			},
			TimeoutSeconds:     15,
			RateLimitPerMinute: 30,
		},
		{
			Name: "workspace.propose_patch",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"file_path":    param("string", true),
				"unified_diff": param("string", true),
				"title":        param("string", true),
				"rationale":    param("string", false),
			},
			TimeoutSeconds:     10,
			RateLimitPerMinute: 10,
			Mutates:            true,
		},
		{
			Name: "workspace.apply_patch",
			Params: map[string]models.ParamSpec{
				"changeset_id": param("string", true),
			},
			TimeoutSeconds:     30,
			RateLimitPerMinute: 5,
			Mutates:            true,
		},
		{
			Name: "workspace.run_validate",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"changeset_id": param("string", true),
			},
			TimeoutSeconds:     60,
			RateLimitPerMinute: 5,
		},
		{
			Name: "workspace.run_unit_tests",
			Params: map[string]models.ParamSpec{
				"workspace_id": param("string", true),
				"changeset_id": param("string", true),
			},
			TimeoutSeconds:     120,
			RateLimitPerMinute: 5,
		},
		{
			Name: "workspace.run_suiteql_assertions",
			Params: map[string]models.ParamSpec{
				"changeset_id": param("string", true),
				"assertions":   param("array", true),
			},
			TimeoutSeconds:     300,
			RateLimitPerMinute: 5,
		},
		{
			Name: "workspace.deploy_sandbox",
			Params: map[string]models.ParamSpec{
				"changeset_id":       param("string", true),
				"override_reason":    param("string", false),
				"require_assertions": param("bool", false),
			},
			TimeoutSeconds:     600,
			RateLimitPerMinute: 2,
			Mutates:            true,
		},
	}
}
