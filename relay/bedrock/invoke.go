package bedrock

import (
	"context"
	"strings"
	"sync"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/bedrockchat/relay/common/config"
	"github.com/bedrockchat/relay/common/logger"
	"github.com/bedrockchat/relay/relay/billing"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// Invoker dispatches composed requests to region-pinned Bedrock runtime
// clients. Clients are created lazily, one per region, and reused for the
// lifetime of the process.
type Invoker struct {
	regions RegionTable

	mu      sync.Mutex
	clients map[string]*bedrockruntime.Client
}

func NewInvoker(regions RegionTable) *Invoker {
	return &Invoker{
		regions: regions,
		clients: make(map[string]*bedrockruntime.Client),
	}
}

// Region resolves the region a composed request must be invoked in.
func (inv *Invoker) Region(req *ConverseRequest) string {
	return inv.regions.Region(NameForModelID(req.ModelID))
}

// Client returns the Bedrock runtime client pinned to a region, creating it
// on first use.
func (inv *Invoker) Client(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if client, ok := inv.clients[region]; ok {
		return client, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if config.BedrockAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.BedrockAccessKey, config.BedrockSecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load aws config for region %s", region)
	}

	logger.Logger.Info("creating bedrock runtime client", zap.String("region", region))
	client := bedrockruntime.NewFromConfig(awsCfg)
	inv.clients[region] = client
	return client, nil
}

// Converse submits a composed request and returns the normalized response.
// Failures from the provider are wrapped and propagated unchanged; retry
// policy belongs to the caller.
func (inv *Invoker) Converse(ctx context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	client, err := inv.Client(ctx, inv.Region(req))
	if err != nil {
		return nil, err
	}
	input, err := buildConverseInput(req)
	if err != nil {
		return nil, err
	}
	output, err := client.Converse(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "converse with model %s", req.ModelID)
	}
	return normalizeConverseOutput(output), nil
}

// ConverseStream submits a composed request in streaming mode. Each text
// delta is handed to onDelta in arrival order; returning an error from
// onDelta aborts the stream. The final normalized response carries the usage
// reported by the stream's metadata event, or a token estimate when the
// stream terminated without one.
func (inv *Invoker) ConverseStream(
	ctx context.Context,
	req *ConverseRequest,
	onDelta func(text string) error,
) (*ConverseResponse, error) {
	client, err := inv.Client(ctx, inv.Region(req))
	if err != nil {
		return nil, err
	}
	input, err := buildConverseInput(req)
	if err != nil {
		return nil, err
	}
	output, err := client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:                      input.ModelId,
		Messages:                     input.Messages,
		System:                       input.System,
		InferenceConfig:              input.InferenceConfig,
		AdditionalModelRequestFields: input.AdditionalModelRequestFields,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "converse stream with model %s", req.ModelID)
	}
	stream := output.GetStream()
	defer stream.Close()

	response := &ConverseResponse{}
	response.Output.Message.Role = relaymodel.RoleAssistant

	var text strings.Builder
	gotUsage := false
	events := stream.Events()
loop:
	for {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "converse stream cancelled")
		case event, ok := <-events:
			if !ok {
				break loop
			}
			switch e := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					text.WriteString(delta.Value)
					if onDelta != nil {
						if err := onDelta(delta.Value); err != nil {
							return nil, errors.Wrap(err, "stream consumer")
						}
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				response.StopReason = string(e.Value.StopReason)
			case *types.ConverseStreamOutputMemberMetadata:
				if e.Value.Usage != nil {
					response.Usage = normalizeUsage(e.Value.Usage)
					gotUsage = true
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "converse stream with model %s", req.ModelID)
	}

	response.Output.Message.Content = []OutputContent{{Text: text.String()}}
	if !gotUsage {
		// Aborted streams can end without a metadata event. Estimate usage so
		// the pricing step still has token counts to work with.
		response.Usage = estimateUsage(req, text.String())
		logger.Logger.Warn("stream ended without usage metadata, estimated token counts",
			zap.String("model_id", req.ModelID),
			zap.Int("input_tokens", response.Usage.InputTokens),
			zap.Int("output_tokens", response.Usage.OutputTokens))
	}
	return response, nil
}

// buildConverseInput translates the normalized wire request into the SDK
// input. top_k travels in the additional model request fields document,
// never in the inference configuration.
func buildConverseInput(req *ConverseRequest) (*bedrockruntime.ConverseInput, error) {
	messages := make([]types.Message, 0, len(req.Messages))
	for _, message := range req.Messages {
		role := types.ConversationRoleUser
		if message.Role == relaymodel.RoleBot || message.Role == relaymodel.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		content := make([]types.ContentBlock, 0, len(message.Content))
		for _, block := range message.Content {
			switch {
			case block.Text != nil:
				content = append(content, &types.ContentBlockMemberText{Value: *block.Text})
			case block.Image != nil:
				content = append(content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: types.ImageFormat(block.Image.Format),
					Source: &types.ImageSourceMemberBytes{Value: block.Image.Source.Bytes},
				}})
			case block.Document != nil:
				content = append(content, &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
					Format: types.DocumentFormat(block.Document.Format),
					Name:   aws.String(block.Document.Name),
					Source: &types.DocumentSourceMemberBytes{Value: block.Document.Source.Bytes},
				}})
			default:
				return nil, errors.New("content block has no recognized member")
			}
		}
		messages = append(messages, types.Message{Role: role, Content: content})
	}

	var system []types.SystemContentBlock
	for _, s := range req.System {
		system = append(system, &types.SystemContentBlockMemberText{Value: s.Text})
	}

	return &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.ModelID),
		Messages: messages,
		System:   system,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:     aws.Int32(int32(req.InferenceConfig.MaxTokens)),
			Temperature:   aws.Float32(float32(req.InferenceConfig.Temperature)),
			TopP:          aws.Float32(float32(req.InferenceConfig.TopP)),
			StopSequences: req.InferenceConfig.StopSequences,
		},
		AdditionalModelRequestFields: document.NewLazyDocument(map[string]any{
			"top_k": req.AdditionalModelRequestFields.TopK,
		}),
	}, nil
}

func normalizeConverseOutput(output *bedrockruntime.ConverseOutput) *ConverseResponse {
	response := &ConverseResponse{StopReason: string(output.StopReason)}
	if message, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		response.Output.Message.Role = string(message.Value.Role)
		for _, block := range message.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				response.Output.Message.Content = append(response.Output.Message.Content,
					OutputContent{Text: text.Value})
			}
		}
	}
	if output.Usage != nil {
		response.Usage = normalizeUsage(output.Usage)
	}
	return response
}

func normalizeUsage(usage *types.TokenUsage) relaymodel.Usage {
	return relaymodel.Usage{
		InputTokens:  int(aws.ToInt32(usage.InputTokens)),
		OutputTokens: int(aws.ToInt32(usage.OutputTokens)),
		TotalTokens:  int(aws.ToInt32(usage.TotalTokens)),
	}
}

func estimateUsage(req *ConverseRequest, completion string) relaymodel.Usage {
	inputTokens := 0
	for _, message := range req.Messages {
		for _, block := range message.Content {
			if block.Text != nil {
				inputTokens += billing.CountTokenText(*block.Text)
			}
		}
	}
	for _, s := range req.System {
		inputTokens += billing.CountTokenText(s.Text)
	}
	outputTokens := billing.CountTokenText(completion)
	return relaymodel.Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
	}
}
