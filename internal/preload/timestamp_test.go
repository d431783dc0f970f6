package preload

import (
	"testing"
	"time"
)

func TestParseTransactionTime(t *testing.T) {
	t.Run("UTC", func(t *testing.T) {
		got, err := ParseTransactionTime("Tue Feb 05 13:10:00 UTC 2019")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("GMT", func(t *testing.T) {
		got, err := ParseTransactionTime("Wed Feb 06 14:10:00 GMT 2019")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := time.Date(2019, time.February, 6, 14, 10, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("IrishWinter", func(t *testing.T) {
		// Dublin is at UTC+0 in February.
		got, err := ParseTransactionTime("Tue Feb 05 13:10:00 IST 2019")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := time.Date(2019, time.February, 5, 13, 10, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("IrishSummer", func(t *testing.T) {
		// Dublin is at UTC+1 in July.
		got, err := ParseTransactionTime("Tue Jul 02 13:10:00 IST 2019")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := time.Date(2019, time.July, 2, 12, 10, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("UnknownZoneRejected", func(t *testing.T) {
		// Go's parser would accept XAB at zero offset; the token guard
		// must reject it instead.
		if _, err := ParseTransactionTime("Tue Feb 05 13:10:00 XAB 2019"); err == nil {
			t.Error("expected an error for unknown zone token XAB")
		}
	})

	t.Run("GarbageRejected", func(t *testing.T) {
		if _, err := ParseTransactionTime("not a timestamp"); err == nil {
			t.Error("expected an error for a malformed timestamp")
		}
	})

	t.Run("ResultIsUTC", func(t *testing.T) {
		got, err := ParseTransactionTime("Tue Feb 05 13:10:00 GMT 2019")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Location() != time.UTC {
			t.Errorf("expected UTC location, got %v", got.Location())
		}
	})
}
