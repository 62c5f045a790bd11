// Command converse sends a single prompt through the compose → invoke →
// price pipeline. It is meant for smoke-testing a deployment from the shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Laisky/zap"
	_ "github.com/joho/godotenv/autoload"

	"github.com/bedrockchat/relay/common/logger"
	"github.com/bedrockchat/relay/relay/bedrock"
	"github.com/bedrockchat/relay/relay/billing"
	relaymodel "github.com/bedrockchat/relay/relay/model"
	"github.com/bedrockchat/relay/relay/pricing"
)

func main() {
	var (
		modelFlag       = flag.String("model", string(bedrock.ModelClaudeV3Haiku), "logical model name")
		promptFlag      = flag.String("prompt", "", "user prompt (required)")
		instructionFlag = flag.String("instruction", "", "system instruction")
		streamFlag      = flag.Bool("stream", false, "stream the response")
		maxTokensFlag   = flag.Int("max-tokens", 0, "override max tokens (0 keeps the family default)")
		temperatureFlag = flag.Float64("temperature", -1, "override temperature (negative keeps the family default)")
	)
	flag.Parse()
	if *promptFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: converse -prompt <text> [-model <alias>] [-stream]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regions, err := bedrock.RegionTableFromConfig()
	if err != nil {
		logger.Logger.Fatal("load region table", zap.Error(err))
	}
	table, err := pricing.TableFromConfig()
	if err != nil {
		logger.Logger.Fatal("load pricing table", zap.Error(err))
	}
	if err := table.Validate(bedrock.ModelNames()); err != nil {
		logger.Logger.Fatal("validate pricing table", zap.Error(err))
	}

	model := bedrock.ModelName(*modelFlag)
	messages := []relaymodel.Message{{
		Role: relaymodel.RoleUser,
		Content: []relaymodel.Content{{
			ContentType: relaymodel.ContentTypeText,
			Body:        *promptFlag,
		}},
	}}

	var params *bedrock.GenerationParams
	if *maxTokensFlag > 0 || *temperatureFlag >= 0 {
		params = &bedrock.GenerationParams{}
		if *maxTokensFlag > 0 {
			params.MaxTokens = maxTokensFlag
		}
		if *temperatureFlag >= 0 {
			params.Temperature = temperatureFlag
		}
	}

	request, err := bedrock.Compose(messages, model, *instructionFlag, *streamFlag, params)
	if err != nil {
		logger.Logger.Fatal("compose request", zap.Error(err))
	}
	logger.Logger.Debug("composed converse request",
		zap.String("model_id", request.ModelID),
		zap.String("region", regions.Region(model)),
		zap.Int("estimated_prompt_tokens", billing.CountTokenMessages(messages)))

	invoker := bedrock.NewInvoker(regions)
	var response *bedrock.ConverseResponse
	if *streamFlag {
		response, err = invoker.ConverseStream(ctx, request, func(delta string) error {
			fmt.Print(delta)
			return nil
		})
		fmt.Println()
	} else {
		response, err = invoker.Converse(ctx, request)
		if err == nil {
			for _, block := range response.Output.Message.Content {
				fmt.Println(block.Text)
			}
		}
	}
	if err != nil {
		logger.Logger.Fatal("converse", zap.Error(err))
	}

	cost, err := pricing.NewCalculator(table, regions).Calculate(
		model, response.Usage.InputTokens, response.Usage.OutputTokens)
	if err != nil {
		logger.Logger.Fatal("calculate price", zap.Error(err))
	}
	logger.Logger.Info("converse finished",
		zap.String("stop_reason", response.StopReason),
		zap.Int("input_tokens", response.Usage.InputTokens),
		zap.Int("output_tokens", response.Usage.OutputTokens),
		zap.Float64("cost_usd", cost))
}
