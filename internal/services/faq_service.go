package services

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed faq_default.yaml
var defaultFAQCorpus []byte

// FAQEntry is one canned answer with the phrasings that trigger it
type FAQEntry struct {
	Question string   `yaml:"question"`
	Patterns []string `yaml:"patterns"`
	Answer   string   `yaml:"answer"`
}

type faqCorpus struct {
	FAQs []FAQEntry `yaml:"faqs"`
}

type indexedFAQ struct {
	answer    string
	phrasings []map[string]struct{}
}

// faqStopwords carry no signal for matching
var faqStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "do": {}, "does": {}, "i": {}, "you": {},
	"your": {}, "me": {}, "to": {}, "of": {}, "for": {}, "in": {}, "on": {}, "what": {}, "how": {},
	"can": {}, "and": {}, "or": {}, "it": {}, "s": {}, "please": {}, "tell": {}, "about": {}, "at": {},
}

// FAQService answers messages that closely match a known question
type FAQService struct {
	mu        sync.RWMutex
	entries   []indexedFAQ
	threshold float64
	path      string
}

// NewFAQService loads the corpus at path, or the embedded corpus when path is empty
func NewFAQService(path string, threshold float64) (*FAQService, error) {
	s := &FAQService{threshold: threshold, path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the corpus. The previous corpus stays active on error.
func (s *FAQService) Reload() error {
	data := defaultFAQCorpus
	if s.path != "" {
		fileData, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("failed to read FAQ file: %w", err)
		}
		data = fileData
	}

	var corpus faqCorpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		return fmt.Errorf("failed to parse FAQ corpus: %w", err)
	}

	entries := make([]indexedFAQ, 0, len(corpus.FAQs))
	for _, faq := range corpus.FAQs {
		if strings.TrimSpace(faq.Answer) == "" {
			continue
		}
		entry := indexedFAQ{answer: strings.TrimSpace(faq.Answer)}
		for _, phrase := range append([]string{faq.Question}, faq.Patterns...) {
			if tokens := faqTokens(phrase); len(tokens) > 0 {
				entry.phrasings = append(entry.phrasings, tokens)
			}
		}
		if len(entry.phrasings) > 0 {
			entries = append(entries, entry)
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	log.Printf("📚 [FAQ] Loaded %d FAQ entries", len(entries))
	return nil
}

// Count returns the number of loaded entries
func (s *FAQService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Match returns the best answer scoring at or above the threshold, or "" with the best score seen
func (s *FAQService) Match(_ context.Context, message string) (string, float64, error) {
	query := faqTokens(message)
	if len(query) == 0 {
		return "", 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bestScore := 0.0
	bestAnswer := ""
	for _, entry := range s.entries {
		for _, phrasing := range entry.phrasings {
			if score := diceScore(query, phrasing); score > bestScore {
				bestScore = score
				bestAnswer = entry.answer
			}
		}
	}

	if bestScore < s.threshold {
		return "", bestScore, nil
	}
	return bestAnswer, bestScore, nil
}

// Watch reloads the corpus file when it changes until ctx is done. No-op for the embedded corpus.
func (s *FAQService) Watch(ctx context.Context) {
	if s.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  [FAQ] Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(s.path)
	if err != nil {
		log.Printf("⚠️  [FAQ] Failed to get absolute path for %s: %v", s.path, err)
		return
	}

	// Editors replace files, so watch the directory
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  [FAQ] Failed to watch directory %s: %v", dir, err)
		return
	}

	log.Printf("👁️  [FAQ] Watching %s for changes (hot-reload enabled)", s.path)

	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				log.Printf("🔄 [FAQ] Detected changes in %s, reloading...", s.path)
				if err := s.Reload(); err != nil {
					log.Printf("❌ [FAQ] Reload failed, keeping previous corpus: %v", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  [FAQ] File watcher error: %v", err)
		}
	}
}

func faqTokens(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if _, stop := faqStopwords[field]; stop {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}

// diceScore is 2|A∩B| / (|A|+|B|)
func diceScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for token := range a {
		if _, ok := b[token]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}
