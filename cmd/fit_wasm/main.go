//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/fitlog"
	"github.com/lucasjlepore/fitlog/fitdecode"
	"github.com/lucasjlepore/fitlog/pipeline"
)

var parser = fitlog.NewParser(fitdecode.New(nil), nil)

func main() {
	js.Global().Set("parseFit", js.FuncOf(parseFit))
	js.Global().Set("exportFit", js.FuncOf(exportFit))
	select {}
}

// parseFit(bytes, name) returns {ok, workout} where workout is JSON text.
func parseFit(_ js.Value, args []js.Value) any {
	w, errResult := parseArgs(args)
	if errResult != nil {
		return errResult
	}
	out, err := json.Marshal(w)
	if err != nil {
		return failure(fmt.Sprintf("encode workout: %v", err))
	}
	return map[string]any{
		"ok":      true,
		"workout": string(out),
		"summary": fitlog.Summary(w),
	}
}

// exportFit(bytes, name, options) returns {ok, zip, files}. CSV is the only
// sensor format available in the browser.
func exportFit(_ js.Value, args []js.Value) any {
	w, errResult := parseArgs(args)
	if errResult != nil {
		return errResult
	}
	var opts js.Value
	if len(args) > 2 {
		opts = args[2]
	}
	files, err := pipeline.ExportBytes(w, getString(opts, "format", "csv"))
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(files))
	for name := range files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":    true,
		"zip":   payload,
		"files": stringsToAny(fileNames),
	}
}

func parseArgs(args []js.Value) (*fitlog.ParsedWorkout, map[string]any) {
	if len(args) < 1 {
		return nil, failure("expected arguments: fileBytes(Uint8Array), name(string)")
	}
	fileArg := args[0]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return nil, failure("fit file bytes are required")
	}
	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return nil, failure("failed to read FIT bytes from JS input")
	}

	name := "input.fit"
	if len(args) > 1 && args[1].Type() == js.TypeString && args[1].String() != "" {
		name = args[1].String()
	}
	w, err := parser.ParseBytes(name, fileBytes)
	if err != nil {
		return nil, failure(err.Error())
	}
	return w, nil
}

func failure(msg string) map[string]any {
	return map[string]any{
		"ok":    false,
		"error": msg,
	}
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
