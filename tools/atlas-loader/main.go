// atlas-loader 由 gorm models 產生 DDL，給 atlas 的 external_schema 使用：
//
//	data "external_schema" "gorm" {
//	  program = ["go", "run", "./tools/atlas-loader"]
//	}
package main

import (
	"fmt"
	"io"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"
	"github.com/spf13/pflag"

	"campusmart/models"
)

func main() {
	dialect := pflag.String("dialect", "postgres", "postgres or sqlite")
	pflag.Parse()

	if err := load(os.Stdout, *dialect); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load gorm schema: %v\n", err)
		os.Exit(1)
	}
}

func load(w io.Writer, dialect string) error {
	stmts, err := gormschema.New(dialect).Load(models.All()...)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, stmts)
	return err
}
