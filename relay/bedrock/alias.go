package bedrock

import (
	"encoding/json"
	"sort"

	"github.com/Laisky/errors/v2"

	"github.com/bedrockchat/relay/common/config"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// ModelName is the stable, user-facing alias of a model, independent of the
// provider's versioned identifiers.
type ModelName string

const (
	ModelClaudeInstantV1     ModelName = "claude-instant-v1"
	ModelClaudeV2            ModelName = "claude-v2"
	ModelClaudeV3Sonnet      ModelName = "claude-v3-sonnet"
	ModelClaudeV35Sonnet     ModelName = "claude-v3.5-sonnet"
	ModelClaudeV3Haiku       ModelName = "claude-v3-haiku"
	ModelClaudeV3Opus        ModelName = "claude-v3-opus"
	ModelMistral7BInstruct   ModelName = "mistral-7b-instruct"
	ModelMixtral8x7BInstruct ModelName = "mixtral-8x7b-instruct"
	ModelMistralLarge        ModelName = "mistral-large"

	// ModelDefault is the shared bucket that unrecognized provider model ids
	// resolve to for region and pricing purposes.
	ModelDefault ModelName = "default"
)

// modelIDByName is total over the alias enumeration: every logical name maps
// to exactly one Bedrock model id.
// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-ids-arns.html
var modelIDByName = map[ModelName]string{
	ModelClaudeInstantV1:     "anthropic.claude-instant-v1",
	ModelClaudeV2:            "anthropic.claude-v2:1",
	ModelClaudeV3Sonnet:      "anthropic.claude-3-sonnet-20240229-v1:0",
	ModelClaudeV35Sonnet:     "anthropic.claude-3-5-sonnet-20240620-v1:0",
	ModelClaudeV3Haiku:       "anthropic.claude-3-haiku-20240307-v1:0",
	ModelClaudeV3Opus:        "anthropic.claude-3-opus-20240229-v1:0",
	ModelMistral7BInstruct:   "mistral.mistral-7b-instruct-v0:2",
	ModelMixtral8x7BInstruct: "mistral.mixtral-8x7b-instruct-v0:1",
	ModelMistralLarge:        "mistral.mistral-large-2402-v1:0",
}

// modelNameByID is intentionally partial: provider ids evolve faster than
// aliases, so ids outside this table degrade to ModelDefault instead of
// failing. That keeps region and pricing resolution total at the cost of
// silently bucketing truly new models into the default tier.
var modelNameByID = map[string]ModelName{
	"anthropic.claude-3-haiku-20240307-v1:0":    ModelClaudeV3Haiku,
	"anthropic.claude-3-sonnet-20240229-v1:0":   ModelClaudeV3Sonnet,
	"anthropic.claude-3-opus-20240229-v1:0":     ModelClaudeV3Opus,
	"anthropic.claude-3-5-sonnet-20240620-v1:0": ModelClaudeV35Sonnet,
}

// ModelNames returns the closed alias enumeration in stable order. The
// sentinel ModelDefault is not part of it.
func ModelNames() []ModelName {
	names := make([]ModelName, 0, len(modelIDByName))
	for name := range modelIDByName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ModelID resolves a logical model name to its Bedrock model id. An unmapped
// name is a configuration bug, not a user error.
func ModelID(name ModelName) (string, error) {
	id, ok := modelIDByName[name]
	if !ok {
		return "", errors.WithStack(&relaymodel.ConfigurationError{
			Key:    string(name),
			Reason: "no Bedrock model id mapped to this alias",
		})
	}
	return id, nil
}

// NameForModelID resolves a Bedrock model id back to its logical alias; ids
// outside the fixed reverse table resolve to ModelDefault and never fail.
func NameForModelID(id string) ModelName {
	if name, ok := modelNameByID[id]; ok {
		return name
	}
	return ModelDefault
}

// RegionTable maps logical model names to the region each one must be invoked
// in. The ModelDefault entry is mandatory and backs every model without a
// specific entry.
type RegionTable map[ModelName]string

// Region never fails: models absent from the table fall back to the default
// entry.
func (t RegionTable) Region(name ModelName) string {
	if region, ok := t[name]; ok && region != "" {
		return region
	}
	return t[ModelDefault]
}

// Validate enforces the mandatory default entry.
func (t RegionTable) Validate() error {
	if t[ModelDefault] == "" {
		return errors.WithStack(&relaymodel.ConfigurationError{
			Key:    string(ModelDefault),
			Reason: "region table must contain a non-empty default entry",
		})
	}
	return nil
}

// LoadRegionTable parses a JSON region table and validates it.
func LoadRegionTable(raw string) (RegionTable, error) {
	var table RegionTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, errors.Wrap(err, "parse region table")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// RegionTableFromConfig loads the process-wide region table from the
// environment-supplied JSON (or its baked-in default).
func RegionTableFromConfig() (RegionTable, error) {
	return LoadRegionTable(config.BedrockRegionRaw)
}
