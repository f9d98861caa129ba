package kb

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
)

// Document is one Q/A pair from the knowledge file.
type Document struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type file struct {
	Documents []Document `json:"documents"`
}

// KnowledgeBase holds the company knowledge loaded at startup. The whole
// corpus is rendered into the agent's system prompt once, which keeps
// per-turn retrieval off the latency-critical path.
type KnowledgeBase struct {
	docs []Document
}

// Load reads the knowledge JSON file. An empty path yields an empty base,
// which is valid: the agent just answers without company specifics.
func Load(path string) (*KnowledgeBase, error) {
	if path == "" {
		return &KnowledgeBase{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse knowledge file: %w", err)
	}
	log.Printf("[kb] loaded %d documents from %s", len(f.Documents), path)
	return &KnowledgeBase{docs: f.Documents}, nil
}

func (k *KnowledgeBase) Count() int {
	return len(k.docs)
}

// PromptSection renders the corpus as a system-prompt appendix. Returns ""
// for an empty base so the caller can skip the section entirely.
func (k *KnowledgeBase) PromptSection() string {
	if len(k.docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nCompany knowledge base:\n")
	for _, d := range k.docs {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", d.Question, d.Answer)
	}
	return b.String()
}
