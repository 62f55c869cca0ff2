package editor

import "testing"

func baseDraft() DocumentDraft {
	return DocumentDraft{
		DocumentType: "cover-letter",
		Title:        "Application",
		Content:      "Dear team,",
		Metadata:     map[string]string{"company": "Acme", "role": "Engineer"},
		Status:       StatusDraft,
	}
}

func TestFingerprintMetadataOrderIndependent(t *testing.T) {
	a := baseDraft()
	a.Metadata = map[string]string{}
	for _, k := range []string{"company", "role", "tone"} {
		a.Metadata[k] = k + "-value"
	}

	b := baseDraft()
	b.Metadata = map[string]string{}
	for _, k := range []string{"tone", "company", "role"} {
		b.Metadata[k] = k + "-value"
	}

	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint depends on metadata insertion order")
	}
}

func TestFingerprintSensitiveToEachField(t *testing.T) {
	base := Fingerprint(baseDraft())

	mutations := map[string]func(*DocumentDraft){
		"documentType":     func(d *DocumentDraft) { d.DocumentType = "resume" },
		"title":            func(d *DocumentDraft) { d.Title = "Changed" },
		"content":          func(d *DocumentDraft) { d.Content = "Changed" },
		"metadata value":   func(d *DocumentDraft) { d.Metadata["company"] = "Other" },
		"metadata key":     func(d *DocumentDraft) { d.Metadata["extra"] = "x" },
		"generatedContent": func(d *DocumentDraft) { d.GeneratedContent = "draft text" },
		"status":           func(d *DocumentDraft) { d.Status = StatusCompleted },
	}
	for name, mutate := range mutations {
		d := baseDraft()
		mutate(&d)
		if Fingerprint(d) == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

func TestFingerprintIgnoresIdentityAndTimestamps(t *testing.T) {
	a := baseDraft()
	b := baseDraft()
	b.Identity = "doc_1"
	b.LastFingerprint = "stale"
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("fingerprint must cover only the mutable document fields")
	}
}

func TestShouldSave(t *testing.T) {
	d := baseDraft()
	fp := Fingerprint(d)

	if dirty, _ := ShouldSave(d, fp); dirty {
		t.Fatal("unchanged draft reported dirty")
	}
	d.Content = "Dear team, hello"
	dirty, next := ShouldSave(d, fp)
	if !dirty {
		t.Fatal("changed draft reported clean")
	}
	if next == fp {
		t.Fatal("ShouldSave returned the stale fingerprint")
	}
}
