package vocabulary

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultVocabularyExpandsGermanTheftQuery(t *testing.T) {
	v := Default()

	got := v.ExpandQuery("Mein Handy wurde gestohlen")
	want := "Mein Handy wurde gestohlen diebstahl raub geklaut entwendet"
	if got != want {
		t.Fatalf("unexpected expansion:\n got %q\nwant %q", got, want)
	}
}

func TestExpandQueryIsAdditiveOnly(t *testing.T) {
	v := Default()

	query := "Wie lange dauert die Lieferung?"
	if got := v.ExpandQuery(query); got != query {
		t.Fatalf("expected unchanged query without synonym hits, got %q", got)
	}

	got := v.ExpandQuery("My phone was STOLEN")
	if got != "My phone was STOLEN theft robbed taken" {
		t.Fatalf("unexpected english expansion %q", got)
	}
}

func TestMatchKeywordsUsesSubstringsInListOrder(t *testing.T) {
	v := Default()

	got := v.MatchKeywords("Wasserschaden am Display")
	want := []string{"wasserschaden", "wasser", "display", "schaden"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestKeywordTermsIncludeSynonymFamilyOfMatchedKeyword(t *testing.T) {
	v := Default()

	got := v.KeywordTerms("mein handy wurde gestohlen")
	want := []string{"gestohlen", "diebstahl", "raub", "geklaut", "entwendet"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestKeywordTermsIgnoreSynonymOnlyHits(t *testing.T) {
	v := Default()

	if got := v.KeywordTerms("it got stolen"); len(got) != 0 {
		t.Fatalf("expected no keyword terms for non-keyword synonym hit, got %v", got)
	}
}

func TestLoadReadsFileAndNormalizesTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	data := []byte("keywords: [\" Sturz \", sturz, KRATZER]\nsynonyms:\n  Kratzer: [Schramme, \"\"]\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	if got := v.Keywords(); !reflect.DeepEqual(got, []string{"sturz", "kratzer"}) {
		t.Fatalf("unexpected keywords %v", got)
	}
	if got := v.KeywordTerms("Ein Kratzer im Glas"); !reflect.DeepEqual(got, []string{"kratzer", "schramme"}) {
		t.Fatalf("unexpected terms %v", got)
	}
}

func TestParseRejectsEmptyKeywordList(t *testing.T) {
	if _, err := Parse([]byte("synonyms:\n  a: [b]\n")); err == nil {
		t.Fatal("expected error for vocabulary without keywords")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if len(v.Keywords()) != 26 {
		t.Fatalf("expected 26 default keywords, got %d", len(v.Keywords()))
	}
}
