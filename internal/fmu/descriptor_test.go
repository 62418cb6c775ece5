package fmu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

const sampleDescription = `<?xml version="1.0" encoding="UTF-8"?>
<fmiModelDescription fmiVersion="2.0" modelName="Sample" guid="{abc-123}">
  <CoSimulation modelIdentifier="sample"/>
  <ModelVariables>
    <ScalarVariable name="u" valueReference="0" causality="input"><Real/></ScalarVariable>
    <ScalarVariable name="y" valueReference="1" causality="output"><Real/></ScalarVariable>
    <ScalarVariable name="mode" valueReference="2" causality="output"><Integer/></ScalarVariable>
  </ModelVariables>
</fmiModelDescription>`

func writeSampleDescriptor(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "modelDescription.xml"), []byte(sampleDescription), 0o644)
	require.NoError(t, err)
	return dir
}

func TestParseDescriptor(t *testing.T) {
	dir := writeSampleDescriptor(t)
	desc, err := parseDescriptor(dir)
	require.NoError(t, err)
	require.Equal(t, "{abc-123}", desc.GUID)
	require.Equal(t, "sample", desc.CoSimulation.ModelIdentifier)

	vars := desc.variablesByName()
	require.Contains(t, vars, "u")
	require.Equal(t, "input", vars["u"].Causality)
	require.Equal(t, "Real", vars["u"].fmiType())

	outputs := desc.outputs()
	require.Len(t, outputs, 2)
}

func TestParseDescriptorRejectsMissingCoSimulation(t *testing.T) {
	dir := t.TempDir()
	bad := `<fmiModelDescription guid="x"><ModelExchange modelIdentifier="m"/></fmiModelDescription>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modelDescription.xml"), []byte(bad), 0o644))
	_, err := parseDescriptor(dir)
	require.Error(t, err)
}

func TestNativeLibraryPathLinux(t *testing.T) {
	path := nativeLibraryPath("/tmp/scratch", "sample", "linux", "amd64")
	require.Equal(t, filepath.Join("/tmp/scratch", "binaries", "linux64", "sample.so"), path)
}

func TestHostLoadMissingFmuPath(t *testing.T) {
	h := NewHost(t.TempDir())
	err := h.Load(model.Component{ID: 1, Name: "f", Kind: model.KindFMU})
	require.Error(t, err)
}

func TestHostStepUnknownComponentIsDefensive(t *testing.T) {
	h := NewHost(t.TempDir())
	out := h.Step(999, 0, nil)
	require.Equal(t, "error_fmu_not_found", out["status"])
}
