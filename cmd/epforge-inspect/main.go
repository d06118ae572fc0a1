// Package main implements the epforge-inspect binary. It reads only the
// header of an EPF stream and prints the embedded schema, which is useful
// for checking an export before committing to a full conversion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/epforge/epforge/internal/header"
	"github.com/epforge/epforge/internal/input"
	"github.com/epforge/epforge/internal/scan"
	"github.com/epforge/epforge/pkg/types"
)

func main() {
	var (
		inputPath = flag.String("input", "-", "input EPF file, or - for stdin")
		asJSON    = flag.Bool("json", false, "print the schema as JSON")
	)
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputPath != "" && *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	src, _, err := input.Open(in, input.FormatAuto)
	if err != nil {
		log.Fatalf("Failed to open input stream: %v", err)
	}

	res, err := header.Extract(scan.NewScanner(src))
	if err != nil {
		log.Fatalf("Failed to read EPF header: %v", err)
	}

	if *asJSON {
		printJSON(res.Schema)
		return
	}
	printText(res.Schema)
}

func printJSON(schema *types.Schema) {
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode schema: %v", err)
	}
	fmt.Println(string(out))
}

func printText(schema *types.Schema) {
	if p := schema.Provenance; p != nil {
		fmt.Printf("Export:      %s/%s\n", p.Group, p.Name)
		fmt.Printf("Date:        %s\n", p.DateString())
	} else {
		fmt.Println("Export:      (no provenance)")
	}
	if schema.ExportMode != "" {
		fmt.Printf("Export mode: %s\n", schema.ExportMode)
	}
	if len(schema.PrimaryKeys) > 0 {
		fmt.Printf("Primary key: %s\n", strings.Join(schema.PrimaryKeys, ", "))
	}

	typed := schema.HasTypedColumns()
	fmt.Printf("Columns:     %d\n", schema.NumColumns())
	for i, name := range schema.ColumnNames {
		declared := "STRING"
		if typed {
			declared = schema.DeclaredTypes[i]
		}
		marker := ""
		if schema.IsPrimaryKey(name) {
			marker = " (pk)"
		}
		fmt.Printf("  %-32s %s%s\n", name, declared, marker)
	}
	if len(schema.DeclaredTypes) > 0 && !typed {
		fmt.Printf("Warning: %d declared types for %d columns, types ignored\n",
			len(schema.DeclaredTypes), schema.NumColumns())
	}
}
