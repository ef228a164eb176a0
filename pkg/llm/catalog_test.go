package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

var _ = Describe("Catalog", func() {
	It("bundles the five Groq models in picker order", func() {
		ids := []string{}
		for _, m := range llm.Catalog() {
			ids = append(ids, m.ID)
		}

		Expect(ids).To(Equal([]string{
			"gemma2-9b-it",
			"llama-3.3-70b-versatile",
			"llama-3.1-8b-instant",
			"llama3-70b-8192",
			"llama3-8b-8192",
		}))
	})

	It("returns a copy that callers cannot mutate", func() {
		models := llm.Catalog()
		models[0].MaxContextTokens = 1

		m, ok := llm.LookupModel("gemma2-9b-it")
		Expect(ok).To(BeTrue())
		Expect(m.MaxContextTokens).To(Equal(8192))
	})

	It("defaults to llama3-70b-8192", func() {
		m := llm.DefaultModel()
		Expect(m.ID).To(Equal("llama3-70b-8192"))
		Expect(m.DisplayName).To(Equal("LLaMA3-70b-8192"))
		Expect(m.Developer).To(Equal("Meta"))
		Expect(llm.ModelIndex(m.ID)).To(Equal(3))
	})

	It("reports unknown ids", func() {
		_, ok := llm.LookupModel("gpt-4")
		Expect(ok).To(BeFalse())
		Expect(llm.ModelIndex("gpt-4")).To(Equal(-1))
	})
})

var _ = Describe("Token budget", func() {
	small, _ := llm.LookupModel("llama3-8b-8192")
	large, _ := llm.LookupModel("llama-3.3-70b-versatile")

	It("defaults to min(4096, ceiling)", func() {
		Expect(llm.DefaultBudget(small)).To(Equal(4096))
		Expect(llm.DefaultBudget(large)).To(Equal(4096))
		Expect(llm.DefaultBudget(llm.Model{MaxContextTokens: 2048})).To(Equal(2048))
	})

	DescribeTable("ClampBudget",
		func(m llm.Model, in, want int) {
			Expect(llm.ClampBudget(m, in)).To(Equal(want))
		},
		Entry("keeps an in-range multiple", small, 2048, 2048),
		Entry("raises values under the floor", small, 100, 512),
		Entry("raises negatives", small, -4096, 512),
		Entry("lowers values above the ceiling", small, 100000, 8192),
		Entry("snaps down to the step grid", small, 1500, 1024),
		Entry("allows the full ceiling of large models", large, 128000, 128000),
	)

	It("never leaves the allowed range", func() {
		for _, m := range llm.Catalog() {
			for n := -1024; n <= 140000; n += 333 {
				got := llm.ClampBudget(m, n)
				Expect(got).To(BeNumerically(">=", llm.MinTokenBudget))
				Expect(got).To(BeNumerically("<=", m.MaxContextTokens))
				Expect(got % llm.TokenBudgetStep).To(Equal(0))
			}
		}
	})

	It("rejects out-of-range budgets with a ValidationError", func() {
		err := llm.CheckBudget(small, 9000)
		var validationErr *llm.ValidationError
		Expect(err).To(BeAssignableToTypeOf(validationErr))
		Expect(err.Error()).To(ContainSubstring("between 512 and 8192"))

		Expect(llm.CheckBudget(small, 511)).To(HaveOccurred())
		Expect(llm.CheckBudget(small, 512)).To(Succeed())
		Expect(llm.CheckBudget(small, 8192)).To(Succeed())
	})
})

var _ = Describe("RequestConfig", func() {
	It("accepts a catalog model with an in-range budget", func() {
		cfg := llm.RequestConfig{Model: "llama3-8b-8192", MaxTokens: 4096}
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects an empty model id as a model CompletionError", func() {
		err := llm.RequestConfig{Model: " ", MaxTokens: 4096}.Validate()
		Expect(llm.KindOf(err)).To(Equal(llm.KindModel))
	})

	It("rejects an unsupported model id as a model CompletionError", func() {
		err := llm.RequestConfig{Model: "gpt-4", MaxTokens: 4096}.Validate()
		Expect(llm.KindOf(err)).To(Equal(llm.KindModel))
		Expect(err.Error()).To(ContainSubstring("gpt-4"))
	})

	It("rejects a budget above the model ceiling", func() {
		err := llm.RequestConfig{Model: "gemma2-9b-it", MaxTokens: 16384}.Validate()
		Expect(llm.KindOf(err)).To(Equal(llm.KindValidation))
	})
})
