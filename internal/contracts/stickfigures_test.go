package contracts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadABIEmbedded(t *testing.T) {
	parsed, err := LoadABI("")
	require.NoError(t, err)

	assert.Contains(t, parsed.Methods, "createDeveloper")
	assert.Contains(t, parsed.Methods, "getDeveloperCount")
	assert.Contains(t, parsed.Methods, "getMaxSupply")
	require.Contains(t, parsed.Events, "NewDeveloper")
	assert.Len(t, parsed.Events["NewDeveloper"].Inputs, 2)
}

func TestLoadABIFromArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "StickFigureDevelopersNFT.json")
	artifact := `{"contractName":"StickFigureDevelopersNFT","abi":` + StickFigureDevelopersABI + `}`
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o600))

	parsed, err := LoadABI(path)
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "createDeveloper")
}

func TestLoadABIRejectsIncompleteABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	partial := `[{"inputs":[],"name":"createDeveloper","outputs":[],"stateMutability":"nonpayable","type":"function"}]`
	require.NoError(t, os.WriteFile(path, []byte(partial), 0o600))

	_, err := LoadABI(path)
	assert.ErrorContains(t, err, "getDeveloperCount")
}

func TestLoadABIArtifactWithoutABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bytecode":"0x"}`), 0o600))

	_, err := LoadABI(path)
	assert.ErrorContains(t, err, "no abi field")
}

func writeABI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abi.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadABINormalizesEventArgumentNames(t *testing.T) {
	renamed := strings.Replace(StickFigureDevelopersABI, `"name":"sender"`, `"name":"from"`, 1)

	parsed, err := LoadABI(writeABI(t, renamed))
	require.NoError(t, err)

	inputs := parsed.Events["NewDeveloper"].Inputs
	require.Len(t, inputs, 2)
	assert.Equal(t, "sender", inputs[0].Name)
	assert.Equal(t, "tokenId", inputs[1].Name)

	embedded, err := LoadABI("")
	require.NoError(t, err)
	assert.Equal(t, embedded.Events["NewDeveloper"].ID, parsed.Events["NewDeveloper"].ID)
}

func TestLoadABIRejectsMismatchedEvent(t *testing.T) {
	swapped := strings.Replace(StickFigureDevelopersABI,
		`"internalType":"uint256","name":"tokenId","type":"uint256"`,
		`"internalType":"string","name":"tokenId","type":"string"`, 1)
	_, err := LoadABI(writeABI(t, swapped))
	assert.ErrorContains(t, err, "want uint256")

	short := strings.Replace(StickFigureDevelopersABI,
		`,
    {"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"}`, "", 1)
	_, err = LoadABI(writeABI(t, short))
	assert.ErrorContains(t, err, "has 1 inputs")
}
