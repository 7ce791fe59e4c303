package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name        string
		downloading bool
		fraction    float64
		onDisk      bool
		active      bool
		want        Status
	}{
		{name: "fresh", want: Status{Kind: StatusNotDownloaded}},
		{name: "downloading", downloading: true, fraction: 0.4, want: Status{Kind: StatusDownloading, Fraction: 0.4}},
		{name: "downloading wins over disk", downloading: true, fraction: 0.9, onDisk: true, want: Status{Kind: StatusDownloading, Fraction: 0.9}},
		{name: "downloaded", onDisk: true, want: Status{Kind: StatusDownloaded}},
		{name: "active", onDisk: true, active: true, want: Status{Kind: StatusActive}},
		{name: "active id but file gone", active: true, want: Status{Kind: StatusNotDownloaded}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := deriveStatus(tc.downloading, tc.fraction, tc.onDisk, tc.active)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCatalogLookup(t *testing.T) {
	for _, info := range Catalog() {
		found, err := Lookup(info.ID)
		require.NoError(t, err)
		require.Equal(t, info, found)
		require.NotEmpty(t, found.URL)
		require.NotEmpty(t, found.Filename)
		require.Positive(t, found.SizeBytes)
	}

	_, err := Lookup("turbo")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogDefaultExists(t *testing.T) {
	_, err := Lookup(DefaultID)
	require.NoError(t, err)
}
