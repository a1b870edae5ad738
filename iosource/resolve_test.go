package iosource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name    string
		spec    string
		want    string
		wantErr bool
	}{
		{name: "bare path", spec: "data/parents.csv", want: "data/parents.csv"},
		{name: "stdio", spec: "-", want: "-"},
		{name: "file url", spec: "file:///tmp/data.csv", want: "/tmp/data.csv"},
		{name: "unsupported scheme", spec: "s3://bucket/key.csv", wantErr: true},
		{name: "empty", spec: "   ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.spec)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
