package nlu

import (
	"context"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	kbtypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"golang.org/x/time/rate"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Texts returned instead of a knowledge-base answer.
const (
	BlockedReply       = "I apologize, but I cannot provide that information. Please contact support."
	RetrievalErrReply  = "I'm sorry, I encountered an error. Please try again."
	NotConfiguredReply = "Knowledge Base not configured."
)

const numberOfResults = 3

var robotPreambles = []string{
	"Based on the retrieved results, ",
	"Based on retrieved results, ",
	"Based on the information provided, ",
	"Based on information provided, ",
	"According to the retrieved information, ",
	"According to the information, ",
	"The retrieved results indicate that ",
	"From the retrieved information, ",
	"Based on the context provided, ",
	"Berdasarkan maklumat yang diperoleh, ",
	"Berdasarkan keputusan yang diperoleh, ",
}

// RetrieveAndGenerateAPI is the subset of the Bedrock agent runtime client
// the retriever uses.
type RetrieveAndGenerateAPI interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// Translator renders English text in Bahasa Malaysia.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

var _ model.Retriever = (*Retriever)(nil)

// Retriever answers informational questions from a Bedrock knowledge base.
type Retriever struct {
	api             RetrieveAndGenerateAPI
	knowledgeBaseID string
	modelARN        string
	guardrail       Guardrail
	translator      Translator
	caller          caller
	logger          *logger.Logger
}

func NewRetriever(
	api RetrieveAndGenerateAPI,
	knowledgeBaseID string,
	modelARN string,
	guardrail Guardrail,
	translator Translator,
	limiter *rate.Limiter,
	policy RetryPolicy,
	logger *logger.Logger,
) *Retriever {
	return &Retriever{
		api:             api,
		knowledgeBaseID: knowledgeBaseID,
		modelARN:        modelARN,
		guardrail:       guardrail,
		translator:      translator,
		caller:          caller{limiter: limiter, policy: policy, logger: logger},
		logger:          logger,
	}
}

// Retrieve never fails: errors become an ungrounded apology.
func (r *Retriever) Retrieve(ctx context.Context, query string, lang model.Language) model.Retrieval {
	if r.knowledgeBaseID == "" {
		return model.Retrieval{Response: NotConfiguredReply, Citations: []string{}}
	}

	var out *bedrockagentruntime.RetrieveAndGenerateOutput
	err := r.caller.do(ctx, "retrieve_and_generate", func(ctx context.Context) error {
		var err error
		out, err = r.api.RetrieveAndGenerate(ctx, r.input(query))
		return err
	})
	if err != nil {
		r.logger.Error("Retriever: knowledge base query failed", "error", err.Error())
		return model.Retrieval{Response: RetrievalErrReply, Citations: []string{}}
	}

	if out.GuardrailAction == kbtypes.GuadrailActionIntervened {
		r.logger.Warn("Retriever: guardrail intervened")
		return model.Retrieval{Response: BlockedReply, Citations: []string{}}
	}

	text := ""
	if out.Output != nil {
		text = aws.ToString(out.Output.Text)
	}
	text = CleanMarkdown(stripPreamble(text))
	citations := articleIDs(out.Citations)

	if lang == model.LanguageBM && text != "" && r.translator != nil {
		translated, err := r.translator.Translate(ctx, text)
		if err != nil {
			r.logger.Warn("Retriever: translation failed, answering in English", "error", err.Error())
		} else if translated != "" {
			text = translated
		}
	}

	return model.Retrieval{Response: text, Grounded: len(citations) > 0, Citations: citations}
}

func (r *Retriever) input(query string) *bedrockagentruntime.RetrieveAndGenerateInput {
	kb := &kbtypes.KnowledgeBaseRetrieveAndGenerateConfiguration{
		KnowledgeBaseId: aws.String(r.knowledgeBaseID),
		ModelArn:        aws.String(r.modelARN),
		RetrievalConfiguration: &kbtypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &kbtypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(numberOfResults),
			},
		},
	}
	if r.guardrail.enabled() {
		kb.GenerationConfiguration = &kbtypes.GenerationConfiguration{
			GuardrailConfiguration: &kbtypes.GuardrailConfiguration{
				GuardrailId:      aws.String(r.guardrail.ID),
				GuardrailVersion: aws.String(r.guardrail.Version),
			},
		}
	}

	return &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &kbtypes.RetrieveAndGenerateInput{Text: aws.String(query)},
		RetrieveAndGenerateConfiguration: &kbtypes.RetrieveAndGenerateConfiguration{
			Type:                       kbtypes.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: kb,
		},
	}
}

func stripPreamble(text string) string {
	for _, p := range robotPreambles {
		if len(text) < len(p) || !strings.EqualFold(text[:len(p)], p) {
			continue
		}
		rest := text[len(p):]
		r, size := utf8.DecodeRuneInString(rest)
		if size == 0 {
			return rest
		}
		return string(unicode.ToUpper(r)) + rest[size:]
	}
	return text
}

// articleIDs returns the distinct article ids cited, taken from the S3 file
// name prefix before the first '-'.
func articleIDs(citations []kbtypes.Citation) []string {
	ids := []string{}
	seen := make(map[string]bool)
	for _, c := range citations {
		for _, ref := range c.RetrievedReferences {
			if ref.Location == nil || ref.Location.S3Location == nil {
				continue
			}
			uri := aws.ToString(ref.Location.S3Location.Uri)
			if uri == "" {
				continue
			}
			id, _, _ := strings.Cut(path.Base(uri), "-")
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
