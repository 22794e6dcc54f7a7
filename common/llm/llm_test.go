package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pivotpath.io/engine/common/llm"
)

type searchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

var _ = Describe("ParseToolArguments", func() {
	It("unmarshals well-formed arguments", func() {
		args, err := llm.ParseToolArguments[searchArgs](`{"query":"pm interview prep","max_results":5}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(args.Query).To(Equal("pm interview prep"))
		Expect(args.MaxResults).To(Equal(5))
	})

	It("returns an error for malformed JSON", func() {
		_, err := llm.ParseToolArguments[searchArgs](`{"query": unterminated`)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parse tool arguments"))
	})

	It("ignores unknown fields", func() {
		args, err := llm.ParseToolArguments[searchArgs](`{"query":"q","extra":true}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(args.Query).To(Equal("q"))
	})
})

var _ = Describe("NewClient", func() {
	It("rejects an empty API key", func() {
		_, err := llm.NewClient(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := llm.NewClient(llm.Config{Provider: "cohere", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	DescribeTable("selects the configured provider",
		func(provider string) {
			client, err := llm.NewClient(llm.Config{Provider: provider, APIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(client).NotTo(BeNil())
		},
		Entry("openai", llm.ProviderOpenAI),
		Entry("anthropic", llm.ProviderAnthropic),
		Entry("default (empty) falls back to anthropic", ""),
	)
})
