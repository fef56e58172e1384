package reporting

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/xkilldash9x/regprobe/internal/recorder"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed run.schema.json
var runSchemaJSON []byte

var (
	runSchema   *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

func compileRunSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(runSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal run schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("run.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add run schema resource: %w", err)
			return
		}
		runSchema, err = compiler.Compile("run.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile run schema: %w", err)
		}
	})
	return compileErr
}

// ValidateRunJSON checks data against the run record schema.
func ValidateRunJSON(data []byte) error {
	if err := compileRunSchema(); err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := runSchema.Validate(inst); err != nil {
		return fmt.Errorf("run record validation failed: %w", err)
	}
	return nil
}

// MarshalRun encodes run as indented JSON and validates the result.
func MarshalRun(run recorder.RunRecord) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode run record: %w", err)
	}
	if err := ValidateRunJSON(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeRun writes run as validated, indented JSON.
func EncodeRun(w io.Writer, run recorder.RunRecord) error {
	data, err := MarshalRun(run)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DecodeRun reads and validates a run record.
func DecodeRun(r io.Reader) (recorder.RunRecord, error) {
	var run recorder.RunRecord
	data, err := io.ReadAll(r)
	if err != nil {
		return run, fmt.Errorf("read run record: %w", err)
	}
	if err := ValidateRunJSON(data); err != nil {
		return run, err
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("decode run record: %w", err)
	}
	return run, nil
}

// LoadRun reads a run.json from disk.
func LoadRun(path string) (recorder.RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return recorder.RunRecord{}, fmt.Errorf("open run record: %w", err)
	}
	defer f.Close()
	return DecodeRun(f)
}
