package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/groqchat/pkg/config"
)

func sseChunk(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "llama3-70b-8192",
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]any{"role": "assistant", "content": content},
		}},
	})
	return "data: " + string(data) + "\n\n"
}

var _ = Describe("Chat Command", func() {
	var (
		ctx    context.Context
		tmpDir string
		groq   *httptest.Server
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		for _, key := range []string{config.EnvAPIKey, config.EnvBaseURL} {
			prev, had := os.LookupEnv(key)
			Expect(os.Unsetenv(key)).To(Succeed())
			DeferCleanup(func() {
				if had {
					os.Setenv(key, prev)
				}
			})
		}

		groq = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer gsk_test" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range []string{"Hi", " there", "!"} {
				fmt.Fprint(w, sseChunk(f))
				w.(http.Flusher).Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		DeferCleanup(groq.Close)
	})

	writeConfig := func(apiKey string) string {
		path := filepath.Join(tmpDir, "config.toml")
		content := fmt.Sprintf("api_key = %q\nbase_url = %q\nsecrets_file = \"\"\n", apiKey, groq.URL+"/")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	run := func(input string, args ...string) error {
		cmd := NewChatCmd()
		cmd.SetIn(strings.NewReader(input))
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.ExecuteContext(ctx)
	}

	It("streams a reply through the line prompt", func() {
		Expect(run("Hello\n", "--config", writeConfig("gsk_test"))).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Hi there!"))
	})

	It("switches models from the prompt", func() {
		Expect(run("/model llama3-8b-8192\n/model\n", "--config", writeConfig("gsk_test"))).To(Succeed())
		Expect(out.String()).To(ContainSubstring("using LLaMA3-8b-8192 by Meta"))
	})

	It("starts on the requested model and budget", func() {
		Expect(run("/model\n/tokens\n", "--config", writeConfig("gsk_test"),
			"--model", "gemma2-9b-it", "--max-tokens", "2048")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("using Gemma2-9b-it by Google"))
		Expect(out.String()).To(ContainSubstring("max tokens 2048"))
	})

	It("explains a missing API key", func() {
		Expect(run("Hello\n", "--config", writeConfig(""))).To(Succeed())
		Expect(out.String()).To(ContainSubstring("authentication failed"))
	})

	It("explains a rejected API key", func() {
		Expect(run("Hello\n", "--config", writeConfig("gsk_wrong"))).To(Succeed())
		Expect(out.String()).To(ContainSubstring("authentication failed"))
	})

	It("rejects an unknown model", func() {
		err := run("", "--config", writeConfig("gsk_test"), "--model", "gpt-4")
		Expect(err).To(MatchError(ContainSubstring("unknown model")))
	})

	It("fails on a missing config file", func() {
		err := run("", "--config", filepath.Join(tmpDir, "missing.toml"))
		Expect(err).To(MatchError(ContainSubstring("could not load config")))
	})

	It("writes logs to the log file", func() {
		logPath := filepath.Join(tmpDir, "chat.log")
		Expect(run("Hello\n", "--config", writeConfig("gsk_test"), "--log-file", logPath, "--debug")).To(Succeed())

		data, err := os.ReadFile(logPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("chat started"))
		Expect(string(data)).To(ContainSubstring("reply committed"))
		Expect(out.String()).NotTo(ContainSubstring("chat started"))
	})
})
