package media

import "testing"

func TestDownloadURLHostedBucket(t *testing.T) {
	s := &Store{bucket: "recado-media", region: "us-east-1"}
	got := s.downloadURL("images/conv-1/abc.jpg")
	want := "https://recado-media.s3.us-east-1.amazonaws.com/images/conv-1/abc.jpg"
	if got != want {
		t.Fatalf("downloadURL = %q, want %q", got, want)
	}
}

func TestDownloadURLCustomEndpoint(t *testing.T) {
	s := &Store{bucket: "recado-media", region: "us-east-1", endpoint: "http://localhost:9000/"}
	got := s.downloadURL("avatars/u1/abc.png")
	want := "http://localhost:9000/recado-media/avatars/u1/abc.png"
	if got != want {
		t.Fatalf("downloadURL = %q, want %q", got, want)
	}
}
