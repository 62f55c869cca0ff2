package editor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint hashes the mutable document fields. Identity and LastSavedAt
// are excluded; metadata is serialized with sorted keys so the fingerprint is
// insertion-order independent.
func Fingerprint(d DocumentDraft) string {
	type metaPair struct {
		Key   string `json:"k"`
		Value string `json:"v"`
	}
	pairs := make([]metaPair, 0, len(d.Metadata))
	for k, v := range d.Metadata {
		pairs = append(pairs, metaPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	canonical := struct {
		DocumentType     string     `json:"documentType"`
		Title            string     `json:"title"`
		Content          string     `json:"content"`
		Metadata         []metaPair `json:"metadata"`
		GeneratedContent string     `json:"generatedContent"`
		Status           Status     `json:"status"`
	}{
		DocumentType:     d.DocumentType,
		Title:            d.Title,
		Content:          d.Content,
		Metadata:         pairs,
		GeneratedContent: d.GeneratedContent,
		Status:           d.Status,
	}

	payload, _ := json.Marshal(canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ShouldSave reports whether the draft differs from the last persisted state
// and returns the draft's current fingerprint. Pure function.
func ShouldSave(d DocumentDraft, lastFingerprint string) (bool, string) {
	fp := Fingerprint(d)
	return fp != lastFingerprint, fp
}
