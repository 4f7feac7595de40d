package shipping

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	classifier := NewSubstringClassifier()

	cases := []struct {
		status string
		want   Event
	}{
		{"Delivered", EventDelivered},
		{"Paket diterima oleh penerima", EventDelivered},
		{"POD - received by JOHN", EventDelivered},
		{"Return to sender", EventFailed},
		{"Pengiriman gagal", EventFailed},
		{"Order canceled by courier", EventFailed},
		{"Picked up by courier", EventShippingStarted},
		{"Manifested at origin hub", EventShippingStarted},
		{"IN TRANSIT to destination", EventShippingStarted},
		{"Paket sedang dikirim", EventShippingStarted},
		{"", EventNone},
		{"   ", EventNone},
		{"warehouse scan", EventNone},
	}
	for _, tc := range cases {
		if got := Classify(classifier, tc.status); got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestClassifyDeliveredWinsOverStarted(t *testing.T) {
	t.Parallel()

	// Carrier copy often mentions transit history in the same line as the
	// final delivery; the strongest signal must win.
	status := "in transit -> delivered to front desk"
	if got := Classify(NewSubstringClassifier(), status); got != EventDelivered {
		t.Fatalf("Classify(%q) = %s, want %s", status, got, EventDelivered)
	}
}
