package langdetect

import "testing"

func TestDetectISO6391ShortTextIsUnknown(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "Kaza", "12 34 56 78"} {
		if got := DetectISO6391(text); got != "" {
			t.Fatalf("expected empty code for %q, got %q", text, got)
		}
	}
}

func TestDetectISO6391Turkish(t *testing.T) {
	t.Parallel()

	got := DetectISO6391("Belediye ekipleri mahalledeki çöp konteynerlerinin günlerdir boşaltılmadığını söyleyen vatandaşların şikayetleri üzerine harekete geçti.")
	if got != "tr" {
		t.Fatalf("expected tr, got %q", got)
	}
}
