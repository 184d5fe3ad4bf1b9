package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trade-ledger/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// SaleInterpreter turns a free-text order note into a sale draft.
type SaleInterpreter interface {
	InterpretSale(ctx context.Context, text string, catalog Catalog) (*SaleDraft, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

func (a *Agent) InterpretSale(ctx context.Context, text string, catalog Catalog) (*SaleDraft, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &core.ValidationError{Field: "text", Message: "is required"}
	}

	prompt := fmt.Sprintf(`You record wholesale sales for a small trading business.
Interpret the order note below and draft exactly one sale.
Rules:
1. Use ONLY customer codes and product codes from the lists below.
2. Quantity and payment_amount are exact decimal strings (e.g. "12.5"). Use "0" when nothing was paid.
3. sale_date is YYYY-MM-DD, or an empty string if the note does not say.
4. Provide a confidence score (0.0-1.0) and explain your reasoning.

%s
Order note: %s`, catalog.String(), text)

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "sale_draft",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A draft sale awaiting confirmation"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, &core.ExternalServiceError{Op: "interpret", Err: err}
	}

	content := resp.OutputText()
	if content == "" {
		return nil, &core.ExternalServiceError{Op: "interpret", Err: fmt.Errorf("empty response content")}
	}
	return ParseDraft(content, catalog)
}

// ParseDraft decodes a model response and checks it against the catalog.
func ParseDraft(content string, catalog Catalog) (*SaleDraft, error) {
	var draft SaleDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return nil, &core.ExternalServiceError{Op: "interpret", Err: fmt.Errorf("failed to parse completion: %w", err)}
	}
	draft.Normalize()
	if err := draft.Resolve(catalog); err != nil {
		return nil, err
	}
	return &draft, nil
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&SaleDraft{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
