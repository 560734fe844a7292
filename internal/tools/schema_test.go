package tools

import (
	"testing"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

func TestParamsSchemaMarksRequiredAndDefaults(t *testing.T) {
	var desc models.ToolDescriptor
	for _, c := range Catalog() {
		if c.Name == "netsuite.suiteql" {
			desc = c
			break
		}
	}

	schema := ParamsSchema(desc)

	if schema.Type != "object" {
		t.Fatalf("expected object schema, got %s", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("expected only query required, got %v", schema.Required)
	}

	limitProp, ok := schema.Properties.Get("limit")
	if !ok {
		t.Fatal("expected limit property present")
	}
	if limitProp.Type != "integer" {
		t.Errorf("expected limit type integer, got %s", limitProp.Type)
	}
	if limitProp.Default != 100 {
		t.Errorf("expected limit default 100, got %v", limitProp.Default)
	}
}
