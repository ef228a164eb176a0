package servecmder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/groqchat/pkg/config"
	"github.com/papercomputeco/groqchat/pkg/llm"
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

var _ = Describe("Serve Command", func() {
	var (
		tmpDir string
		groq   *httptest.Server

		authMu   sync.Mutex
		lastAuth string
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

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
			authMu.Lock()
			lastAuth = r.Header.Get("Authorization")
			authMu.Unlock()

			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range []string{"Hi", " there", "!"} {
				fmt.Fprint(w, sseChunk(f))
				w.(http.Flusher).Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		}))
		DeferCleanup(groq.Close)
	})

	writeConfig := func(secretsFile string) string {
		path := filepath.Join(tmpDir, "config.toml")
		content := fmt.Sprintf("base_url = %q\nsecrets_file = %q\n", groq.URL+"/", secretsFile)
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	writeSecrets := func(key string) string {
		path := filepath.Join(tmpDir, "secrets.toml")
		Expect(os.WriteFile(path, []byte(fmt.Sprintf("GROQ_API_KEY = %q\n", key)), 0o600)).To(Succeed())
		return path
	}

	// start runs the commander until the returned stop func is called.
	start := func(cmder *serveCommander) (string, func() error) {
		ctx, cancel := context.WithCancel(context.Background())
		addrCh := make(chan net.Addr, 1)
		cmder.listen = "127.0.0.1:0"
		cmder.ready = func(addr net.Addr) { addrCh <- addr }

		errCh := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			errCh <- cmder.run(ctx)
		}()

		var addr net.Addr
		Eventually(addrCh).Should(Receive(&addr))

		stop := func() error {
			cancel()
			var err error
			Eventually(errCh).Should(Receive(&err))
			return err
		}
		return "http://" + addr.String(), stop
	}

	chat := func(client *http.Client, base, prompt string) []llm.StreamChunk {
		body := strings.NewReader(fmt.Sprintf(`{"prompt":%q}`, prompt))
		resp, err := client.Post(base+"/api/chat", "application/json", body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var chunks []llm.StreamChunk
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var chunk llm.StreamChunk
			Expect(json.Unmarshal(scanner.Bytes(), &chunk)).To(Succeed())
			chunks = append(chunks, chunk)
		}
		return chunks
	}

	It("serves the chat UI until the context is canceled", func() {
		cmder := &serveCommander{configPath: writeConfig(writeSecrets("gsk_one"))}
		base, stop := start(cmder)

		resp, err := http.Get(base + "/health")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, err = http.Get(base + "/")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Expect(stop()).To(Succeed())
	})

	It("streams replies from the upstream API", func() {
		cmder := &serveCommander{configPath: writeConfig(writeSecrets("gsk_one"))}
		base, stop := start(cmder)
		defer stop()

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client := &http.Client{Jar: jar}

		chunks := chat(client, base, "Hello")
		Expect(chunks).NotTo(BeEmpty())
		last := chunks[len(chunks)-1]
		Expect(last.Type).To(Equal(llm.ChunkDone))
		Expect(last.Content).To(Equal("Hi there!"))
		Expect(last.Turns).To(Equal(2))

		authMu.Lock()
		Expect(lastAuth).To(Equal("Bearer gsk_one"))
		authMu.Unlock()
	})

	It("seeds sessions with the requested model", func() {
		cmder := &serveCommander{
			configPath: writeConfig(writeSecrets("gsk_one")),
			model:      "llama-3.1-8b-instant",
			maxTokens:  16384,
		}
		base, stop := start(cmder)
		defer stop()

		resp, err := http.Get(base + "/api/session")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var session struct {
			Model     llm.Model `json:"model"`
			MaxTokens int       `json:"max_tokens"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&session)).To(Succeed())
		Expect(session.Model.ID).To(Equal("llama-3.1-8b-instant"))
		Expect(session.MaxTokens).To(Equal(16384))
	})

	It("picks up a rotated API key with --watch-secrets", func() {
		secrets := writeSecrets("gsk_one")
		cmder := &serveCommander{configPath: writeConfig(secrets), watchSecrets: true}
		base, stop := start(cmder)
		defer stop()

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client := &http.Client{Jar: jar}

		Eventually(func() string {
			writeSecrets("gsk_two")
			chat(client, base, "ping")
			authMu.Lock()
			defer authMu.Unlock()
			return lastAuth
		}, "3s", "100ms").Should(Equal("Bearer gsk_two"))
	})

	It("fails on a missing config file", func() {
		cmder := &serveCommander{configPath: filepath.Join(tmpDir, "missing.toml")}
		err := cmder.run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("could not load config")))
	})

	It("fails when the address is taken", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		cmder := &serveCommander{
			configPath: writeConfig(""),
			listen:     ln.Addr().String(),
		}
		err = cmder.run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("could not listen")))
	})
})
