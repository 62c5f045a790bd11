// Package pricing computes the monetary cost of a model invocation from its
// token usage and a region-scoped pricing table.
package pricing

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/bedrockchat/relay/common/config"
	"github.com/bedrockchat/relay/relay/bedrock"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// defaultTier is the fallback pricing region consulted whenever a
// region-specific row or field is missing.
const defaultTier = "default"

// Price is one pricing tier row: USD per 1,000 tokens. A zero field means the
// row does not price that direction and the default tier applies for it.
type Price struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Table maps region, then logical model name, to its price row.
type Table map[string]map[bedrock.ModelName]Price

// DefaultTable returns the baked-in Bedrock pricing.
// Ref: https://aws.amazon.com/bedrock/pricing/
func DefaultTable() Table {
	return Table{
		"us-east-1": {
			bedrock.ModelClaudeInstantV1:     {Input: 0.0008, Output: 0.0024},
			bedrock.ModelClaudeV2:            {Input: 0.008, Output: 0.024},
			bedrock.ModelClaudeV3Haiku:       {Input: 0.00025, Output: 0.00125},
			bedrock.ModelClaudeV3Sonnet:      {Input: 0.003, Output: 0.015},
			bedrock.ModelClaudeV35Sonnet:     {Input: 0.003, Output: 0.015},
			bedrock.ModelMistral7BInstruct:   {Input: 0.00015, Output: 0.0002},
			bedrock.ModelMixtral8x7BInstruct: {Input: 0.00045, Output: 0.0007},
			bedrock.ModelMistralLarge:        {Input: 0.008, Output: 0.024},
		},
		"us-west-2": {
			bedrock.ModelClaudeInstantV1:     {Input: 0.0008, Output: 0.0024},
			bedrock.ModelClaudeV2:            {Input: 0.008, Output: 0.024},
			bedrock.ModelClaudeV3Haiku:       {Input: 0.00025, Output: 0.00125},
			bedrock.ModelClaudeV3Sonnet:      {Input: 0.003, Output: 0.015},
			bedrock.ModelClaudeV35Sonnet:     {Input: 0.003, Output: 0.015},
			bedrock.ModelClaudeV3Opus:        {Input: 0.015, Output: 0.075},
			bedrock.ModelMistral7BInstruct:   {Input: 0.00015, Output: 0.0002},
			bedrock.ModelMixtral8x7BInstruct: {Input: 0.00045, Output: 0.0007},
			bedrock.ModelMistralLarge:        {Input: 0.008, Output: 0.024},
		},
		"ap-northeast-1": {
			bedrock.ModelClaudeInstantV1: {Input: 0.00223, Output: 0.00755},
			bedrock.ModelClaudeV2:        {Input: 0.01148, Output: 0.03438},
			bedrock.ModelClaudeV3Haiku:   {Input: 0.00025, Output: 0.00125},
			bedrock.ModelClaudeV3Sonnet:  {Input: 0.003, Output: 0.015},
		},
		defaultTier: {
			bedrock.ModelClaudeInstantV1:     {Input: 0.0008, Output: 0.0024},
			bedrock.ModelClaudeV2:            {Input: 0.008, Output: 0.024},
			bedrock.ModelClaudeV3Haiku:       {Input: 0.00025, Output: 0.00125},
			bedrock.ModelClaudeV3Sonnet:      {Input: 0.003, Output: 0.015},
			bedrock.ModelClaudeV35Sonnet:     {Input: 0.003, Output: 0.015},
			bedrock.ModelClaudeV3Opus:        {Input: 0.015, Output: 0.075},
			bedrock.ModelMistral7BInstruct:   {Input: 0.00015, Output: 0.0002},
			bedrock.ModelMixtral8x7BInstruct: {Input: 0.00045, Output: 0.0007},
			bedrock.ModelMistralLarge:        {Input: 0.008, Output: 0.024},
		},
	}
}

// TableFromConfig returns the pricing table, honoring the BEDROCK_PRICING
// JSON override when present.
func TableFromConfig() (Table, error) {
	if config.BedrockPricingRaw == "" {
		return DefaultTable(), nil
	}
	var table Table
	if err := json.Unmarshal([]byte(config.BedrockPricingRaw), &table); err != nil {
		return nil, errors.Wrap(err, "parse pricing table")
	}
	return table, nil
}

// Validate enforces that every listed model carries a complete price row
// under the default tier, which backs all per-field fallbacks.
func (t Table) Validate(models []bedrock.ModelName) error {
	def, ok := t[defaultTier]
	if !ok {
		return errors.WithStack(&relaymodel.ConfigurationError{
			Key:    defaultTier,
			Reason: "pricing table must contain a default tier",
		})
	}
	for _, model := range models {
		price, ok := def[model]
		if !ok || price.Input == 0 || price.Output == 0 {
			return errors.WithStack(&relaymodel.ConfigurationError{
				Key:    string(model),
				Reason: "default pricing tier must price both input and output",
			})
		}
	}
	return nil
}

// Calculator resolves price rows and computes per-call cost.
type Calculator struct {
	table   Table
	regions bedrock.RegionTable
}

func NewCalculator(table Table, regions bedrock.RegionTable) *Calculator {
	return &Calculator{table: table, regions: regions}
}

// Calculate returns the USD cost of a call. The model's region row is
// consulted first; input and output prices fall back independently to the
// default tier. A model missing from the default tier is a configuration
// bug.
func (c *Calculator) Calculate(model bedrock.ModelName, inputTokens, outputTokens int) (float64, error) {
	region := c.regions.Region(model)
	def, ok := c.table[defaultTier][model]
	if !ok {
		return 0, errors.WithStack(&relaymodel.ConfigurationError{
			Key:    string(model),
			Reason: "model has no default pricing tier entry",
		})
	}
	row := c.table[region][model]
	inputPrice := row.Input
	if inputPrice == 0 {
		inputPrice = def.Input
	}
	outputPrice := row.Output
	if outputPrice == 0 {
		outputPrice = def.Output
	}
	return inputPrice*float64(inputTokens)/1000.0 + outputPrice*float64(outputTokens)/1000.0, nil
}
