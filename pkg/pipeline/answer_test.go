package pipeline

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
)

var _ = Describe("scoreConfidence", func() {
	It("weights a strong top hit", func() {
		Expect(scoreConfidence(0.85, 1, "plain answer")).To(BeNumerically("~", 0.5, 0.001))
	})

	It("weights a moderate top hit", func() {
		Expect(scoreConfidence(0.65, 1, "plain answer")).To(BeNumerically("~", 0.3, 0.001))
	})

	It("weights result count", func() {
		Expect(scoreConfidence(0.5, 3, "plain answer")).To(BeNumerically("~", 0.3, 0.001))
	})

	It("weights citation markers", func() {
		Expect(scoreConfidence(0.5, 1, "see [1] and [2]")).To(BeNumerically("~", 0.4, 0.001))
	})

	It("caps at 1.0", func() {
		Expect(scoreConfidence(0.95, 5, "cited [1]")).To(BeNumerically("~", 1.0, 0.001))
		Expect(scoreConfidence(0.95, 5, "cited [1]")).To(BeNumerically("<=", 1.0))
	})

	It("is zero with no signal", func() {
		Expect(scoreConfidence(0.1, 0, "answer")).To(BeZero())
	})
})

var _ = Describe("extractRecommendedAction", func() {
	It("extracts the clause after a next-step marker", func() {
		action := extractRecommendedAction("The data is stale. Next step: refresh the index. Then re-run.")
		Expect(action).To(Equal("refresh the index"))
	})

	It("extracts a you-should sentence", func() {
		action := extractRecommendedAction("You should archive old notes before indexing")
		Expect(action).To(Equal("You should archive old notes before indexing"))
	})

	It("matches case-insensitively", func() {
		action := extractRecommendedAction("I Recommend splitting the note")
		Expect(action).NotTo(BeEmpty())
	})

	It("returns empty when no imperative phrase exists", func() {
		Expect(extractRecommendedAction("Plants use sunlight to make glucose.")).To(BeEmpty())
	})
})

var _ = Describe("buildPrompt", func() {
	It("numbers sources and carries the question", func() {
		prompt := buildPrompt("how?", []vector.SearchResult{
			{Document: vector.Document{ID: "a.md", Content: "first"}, Score: 0.9},
			{Document: vector.Document{ID: "b.md", Content: "second"}, Score: 0.8},
		})

		Expect(prompt).To(ContainSubstring("[1] (a.md) first"))
		Expect(prompt).To(ContainSubstring("[2] (b.md) second"))
		Expect(prompt).To(ContainSubstring("Question: how?"))
	})
})

var _ = Describe("resultCache", func() {
	It("returns cached values by key", func() {
		c := newResultCache(4)
		c.put("k", IngestResult{OperationID: "op-1"})

		v, ok := c.get("k")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(IngestResult{OperationID: "op-1"}))
	})

	It("ignores empty keys", func() {
		c := newResultCache(4)
		c.put("", IngestResult{})

		_, ok := c.get("")
		Expect(ok).To(BeFalse())
		Expect(c.len()).To(BeZero())
	})

	It("evicts oldest entries past the bound", func() {
		c := newResultCache(2)
		c.put("a", 1)
		c.put("b", 2)
		c.put("c", 3)

		_, ok := c.get("a")
		Expect(ok).To(BeFalse())

		_, ok = c.get("c")
		Expect(ok).To(BeTrue())
		Expect(c.len()).To(Equal(2))
	})
})
