package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/storage"
	"github.com/papercomputeco/groqchat/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	AfterEach(func() {
		driver.Close()
	})

	newSession := func(id string) *conversation.Session {
		return conversation.NewSession(id, zap.NewNop())
	}

	Describe("Put and Get", func() {
		It("stores and retrieves a session", func() {
			session := newSession("a")
			Expect(driver.Put(ctx, session)).To(Succeed())

			retrieved, err := driver.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved).To(BeIdenticalTo(session))
		})

		It("returns ErrNotFound for an unknown id", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound{ID: "missing"}))
			Expect(err.Error()).To(Equal("session not found: missing"))
		})

		It("rejects nil sessions", func() {
			err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(ContainSubstring("nil session")))
		})

		It("rejects sessions without an id", func() {
			err := driver.Put(ctx, newSession(""))
			Expect(err).To(HaveOccurred())
		})

		It("replaces an existing entry", func() {
			first := newSession("a")
			second := newSession("a")
			Expect(driver.Put(ctx, first)).To(Succeed())
			Expect(driver.Put(ctx, second)).To(Succeed())

			retrieved, _ := driver.Get(ctx, "a")
			Expect(retrieved).To(BeIdenticalTo(second))
			sessions, _ := driver.List(ctx)
			Expect(sessions).To(HaveLen(1))
		})
	})

	Describe("Has and Delete", func() {
		It("reports presence and removes sessions", func() {
			Expect(driver.Put(ctx, newSession("a"))).To(Succeed())

			exists, err := driver.Has(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			Expect(driver.Delete(ctx, "a")).To(Succeed())
			exists, _ = driver.Has(ctx, "a")
			Expect(exists).To(BeFalse())

			Expect(driver.Delete(ctx, "a")).To(Succeed())
		})
	})

	Describe("List", func() {
		It("returns sessions ordered by id", func() {
			for _, id := range []string{"c", "a", "b"} {
				Expect(driver.Put(ctx, newSession(id))).To(Succeed())
			}

			sessions, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			ids := []string{}
			for _, s := range sessions {
				ids = append(ids, s.ID)
			}
			Expect(ids).To(Equal([]string{"a", "b", "c"}))
		})

		It("returns an empty slice for an empty driver", func() {
			sessions, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})
	})

	Describe("Sweep", func() {
		It("keeps recently active sessions", func() {
			Expect(driver.Put(ctx, newSession("a"))).To(Succeed())

			removed, err := driver.Sweep(ctx, time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeZero())
		})

		It("removes idle sessions", func() {
			Expect(driver.Put(ctx, newSession("a"))).To(Succeed())
			Expect(driver.Put(ctx, newSession("b"))).To(Succeed())

			removed, err := driver.Sweep(ctx, -time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(2))

			sessions, _ := driver.List(ctx)
			Expect(sessions).To(BeEmpty())
		})

		It("never removes a session that is streaming", func() {
			streaming := newSession("streaming")
			Expect(driver.Put(ctx, streaming)).To(Succeed())

			hold := make(chan struct{})
			client := completion.NewMockClient().AddReply(completion.MockReply{
				Fragments: []string{"x"},
				Hold:      hold,
			})
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, _ = streaming.Submit(ctx, client, "hi", nil)
			}()
			Eventually(streaming.Streaming).Should(BeTrue())

			removed, err := driver.Sweep(ctx, -time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeZero())

			close(hold)
			Eventually(done).Should(BeClosed())
		})
	})

	It("drops every session on Close", func() {
		Expect(driver.Put(ctx, newSession("a"))).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		sessions, _ := driver.List(ctx)
		Expect(sessions).To(BeEmpty())
	})
})
