package storage_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/conversation"
	"github.com/papercomputeco/groqchat/pkg/storage"
	"github.com/papercomputeco/groqchat/pkg/storage/inmemory"
)

var _ = Describe("RunSweeper", func() {
	It("evicts idle sessions until the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		driver := inmemory.NewDriver()
		Expect(driver.Put(ctx, conversation.NewSession("idle", zap.NewNop()))).To(Succeed())

		done := make(chan struct{})
		go func() {
			defer close(done)
			storage.RunSweeper(ctx, driver, 10*time.Millisecond, -time.Second, zap.NewNop())
		}()

		Eventually(func() int {
			sessions, _ := driver.List(ctx)
			return len(sessions)
		}).Should(BeZero())

		cancel()
		Eventually(done).Should(BeClosed())
	})

	It("formats ErrNotFound with and without an id", func() {
		Expect(storage.ErrNotFound{}.Error()).To(Equal("session not found"))
		Expect(storage.ErrNotFound{ID: "x"}.Error()).To(Equal("session not found: x"))
	})
})
