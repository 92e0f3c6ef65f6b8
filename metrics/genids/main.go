// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// genids writes the metric id constants for the definitions in metrics.json.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

type metricDef struct {
	Description string `json:"description"`
	MetricType  string `json:"type"`
	Name        string `json:"name"`
	FieldName   string `json:"field"`
	Unit        string `json:"unit"`
	ID          uint32 `json:"id"`
	Obsolete    bool   `json:"obsolete"`
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <metrics.json> <output.go>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v", os.Args[1], err)
		os.Exit(1)
	}

	var metricDefs []metricDef
	if err = json.Unmarshal(input, &metricDefs); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling: %v", err)
		os.Exit(1)
	}

	var output bytes.Buffer
	output.WriteString(
		"// Code generated from metrics.json. DO NOT EDIT.\n" +
			"\n" +
			"package metrics\n" +
			"\n" +
			"// To add a new metric append an entry to metrics.json. ONLY APPEND !\n" +
			"// Then run 'go generate ./metrics'.\n" +
			"\n" +
			"// Below are the different metric IDs that we currently implement.\n" +
			"const (\n" +
			"\n\t// Leave out the 0 value. It's an indication of not explicitly " +
			"initialized variables.\n\tIDInvalid = 0\n")

	maxID := uint32(0)
	for _, m := range metricDefs {
		maxID = max(maxID, m.ID)
		if m.Obsolete {
			continue
		}
		fmt.Fprintf(&output, "\n\t// %s\n\tID%s = %d\n", m.Description, m.Name, m.ID)
	}

	output.WriteString(
		"\n\t// max number of ID values, keep this as *last entry*\n" +
			fmt.Sprintf("\tIDMax = %d\n)\n", maxID+1))

	if err = os.WriteFile(os.Args[2], output.Bytes(), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}
}
