package fmu

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// descriptor is the subset of an FMI 2.0 modelDescription.xml this host
// needs: the GUID (must match what the shared library reports at
// instantiation... in practice the GUID passed to fmi2Instantiate so the
// library can refuse a mismatched description), the Co-Simulation model
// identifier (names the shared library file), and the scalar variable
// table used to map port names to value references.
type descriptor struct {
	XMLName         xml.Name         `xml:"fmiModelDescription"`
	GUID            string           `xml:"guid,attr"`
	ModelName       string           `xml:"modelName,attr"`
	CoSimulation    *coSimulation    `xml:"CoSimulation"`
	ModelVariables  modelVariableSet `xml:"ModelVariables"`
}

type coSimulation struct {
	ModelIdentifier string `xml:"modelIdentifier,attr"`
}

type modelVariableSet struct {
	Variables []scalarVariable `xml:"ScalarVariable"`
}

type scalarVariable struct {
	Name           string `xml:"name,attr"`
	ValueReference uint32 `xml:"valueReference,attr"`
	Causality      string `xml:"causality,attr"` // input | output | parameter | local
	Real           *struct{} `xml:"Real"`
	Integer        *struct{} `xml:"Integer"`
	Boolean        *struct{} `xml:"Boolean"`
	String         *struct{} `xml:"String"`
	Enumeration    *struct{} `xml:"Enumeration"`
}

// fmiType reports the declared scalar type for the set/get type-coercion
// rules in the FMU host contract. Unrecognized types return "" so the
// caller can skip them with a warning.
func (v scalarVariable) fmiType() string {
	switch {
	case v.Real != nil:
		return "Real"
	case v.Integer != nil:
		return "Integer"
	case v.Enumeration != nil:
		return "Enumeration"
	case v.Boolean != nil:
		return "Boolean"
	case v.String != nil:
		return "String"
	default:
		return ""
	}
}

func parseDescriptor(scratchDir string) (*descriptor, error) {
	path := filepath.Join(scratchDir, "modelDescription.xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modelDescription.xml: %w", err)
	}
	var d descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse modelDescription.xml: %w", err)
	}
	if d.CoSimulation == nil || d.CoSimulation.ModelIdentifier == "" {
		return nil, fmt.Errorf("modelDescription.xml declares no CoSimulation.modelIdentifier (FMI 3.0/ModelExchange-only FMUs are not supported)")
	}
	if d.GUID == "" {
		return nil, fmt.Errorf("modelDescription.xml is missing a guid")
	}
	return &d, nil
}

// variablesByName indexes the scalar variable table for O(1) lookup by
// port name, the way the step loop needs it every tick.
func (d *descriptor) variablesByName() map[string]scalarVariable {
	out := make(map[string]scalarVariable, len(d.ModelVariables.Variables))
	for _, v := range d.ModelVariables.Variables {
		out[v.Name] = v
	}
	return out
}

func (d *descriptor) outputs() []scalarVariable {
	var outs []scalarVariable
	for _, v := range d.ModelVariables.Variables {
		if v.Causality == "output" {
			outs = append(outs, v)
		}
	}
	return outs
}

// nativeLibraryPath returns the path of the platform-specific shared library
// in the FMI 2.0 binaries layout: binaries/<platform>/<id>.<ext>, where
// <platform> is linux64, darwin64 or win64 on amd64 and <arch>-<os> on any
// other architecture.
func nativeLibraryPath(scratchDir, modelIdentifier, goos, goarch string) string {
	var platform, ext string
	switch goos {
	case "linux":
		platform, ext = "linux64", "so"
	case "darwin":
		platform, ext = "darwin64", "dylib"
	case "windows":
		platform, ext = "win64", "dll"
	default:
		platform, ext = goos+"64", "so"
	}
	if goarch != "amd64" {
		platform = goarch + "-" + goos
	}
	return filepath.Join(scratchDir, "binaries", platform, modelIdentifier+"."+ext)
}
