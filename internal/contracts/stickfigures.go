package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// StickFigureDevelopersABI is the subset of the deployed collection's ABI the site consumes.
const StickFigureDevelopersABI = `[
  {"inputs":[],"name":"createDeveloper","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"getDeveloperCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getMaxSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[
    {"indexed":false,"internalType":"address","name":"sender","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"}
  ],"name":"NewDeveloper","type":"event"}
]`

// Members the site relies on. A replacement ABI must declare all of them.
var requiredMembers = []string{"createDeveloper", "getDeveloperCount", "getMaxSupply"}

const requiredEvent = "NewDeveloper"

// LoadABI parses the ABI at path, or the embedded one when path is empty.
// The file may be a bare ABI array or a compiler artifact with an "abi" field.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return parse([]byte(StickFigureDevelopersABI))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (abi.ABI, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(raw, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("decode artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi field")
		}
		trimmed = string(artifact.ABI)
	}

	parsed, err := abi.JSON(strings.NewReader(trimmed))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	for _, name := range requiredMembers {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("abi is missing method %s", name)
		}
	}
	ev, ok := parsed.Events[requiredEvent]
	if !ok {
		return abi.ABI{}, fmt.Errorf("abi is missing event %s", requiredEvent)
	}
	normalized, err := normalizeMintEvent(ev)
	if err != nil {
		return abi.ABI{}, err
	}
	parsed.Events[requiredEvent] = normalized
	return parsed, nil
}

// normalizeMintEvent checks the event's shape and renames its inputs to the
// names the decoder binds to. Artifacts disagree on the names (sender, from),
// the positions and types are what the contract guarantees.
func normalizeMintEvent(ev abi.Event) (abi.Event, error) {
	if len(ev.Inputs) != len(mintEventInputs) {
		return abi.Event{}, fmt.Errorf("event %s has %d inputs, want %d", requiredEvent, len(ev.Inputs), len(mintEventInputs))
	}
	inputs := make(abi.Arguments, len(ev.Inputs))
	for i, arg := range ev.Inputs {
		want := mintEventInputs[i]
		if arg.Type.T != want.typ {
			return abi.Event{}, fmt.Errorf("event %s input %d is %s, want %s", requiredEvent, i, arg.Type, want.typeName)
		}
		if want.typ == abi.UintTy && arg.Type.Size != 256 {
			return abi.Event{}, fmt.Errorf("event %s input %d is %s, want %s", requiredEvent, i, arg.Type, want.typeName)
		}
		arg.Name = want.name
		inputs[i] = arg
	}
	ev.Inputs = inputs
	return ev, nil
}

var mintEventInputs = []struct {
	name     string
	typ      byte
	typeName string
}{
	{name: "sender", typ: abi.AddressTy, typeName: "address"},
	{name: "tokenId", typ: abi.UintTy, typeName: "uint256"},
}
