package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed plant.cue
var defaultPlantCUE string

// DefaultPlant compiles the embedded plant specification.
// Panics only on a broken embedded spec, which is a build defect.
func DefaultPlant() *Plant {
	p, err := compileSource(defaultPlantCUE, "plant.cue")
	if err != nil {
		panic(fmt.Sprintf("embedded plant spec invalid: %v", err))
	}
	return p
}

// LoadPlant reads and compiles a plant specification from a .cue file.
// The file is unified with the embedded schema, so defaults apply and
// unknown or ill-typed fields fail compilation.
func LoadPlant(path string) (*Plant, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plant spec: %w", err)
	}
	return compileSource(string(src), path)
}

func compileSource(src, filename string) (*Plant, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(defaultPlantCUE, cue.Filename("plant.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if filename == "plant.cue" {
		return CompilePlant(schema.LookupPath(cue.ParsePath("plant")))
	}

	user := ctx.CompileString(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	userPlant := user.LookupPath(cue.ParsePath("plant"))
	if !userPlant.Exists() {
		return nil, &CompileError{
			Field:   "plant",
			Message: fmt.Sprintf("%s: no top-level plant struct", filename),
		}
	}

	// User plants replace the default plant but keep the #Plant schema, so
	// defaults fill absent fields and ill-typed fields fail here.
	unified := schema.LookupPath(cue.ParsePath("#Plant")).Unify(userPlant)
	if err := unified.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompilePlant(unified)
}
