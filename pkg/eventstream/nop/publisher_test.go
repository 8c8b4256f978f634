package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilOperationEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishOperation(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilOperationEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishOperation(context.Background(), &eventstream.OperationEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
