package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json debug", cfg: Config{Level: "debug", Format: "json"}},
		{name: "text warn", cfg: Config{Level: "WARN", Format: "text"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, err := New(test.cfg)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(Config{Level: "debug", Format: FormatJSON, Writer: &buf})
	require.NoError(t, err)

	log.Debug("signed",
		Component("jws"),
		Algorithm("HS256"),
		KeyID(""),
		Serialization("compact"),
		Count(1),
		Error(nil),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "signed", record["msg"])
	require.Equal(t, "jws", record["component"])
	require.Equal(t, "HS256", record["alg"])
	require.Equal(t, "compact", record["serialization"])
	require.EqualValues(t, 1, record["count"])
	require.NotContains(t, record, "kid")
	require.NotContains(t, record, "error")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log, err := New(Config{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	log.Info("dropped")
	require.Empty(t, buf.String())

	log.Warn("kept", Error(errors.New("boom")))
	require.Contains(t, buf.String(), "boom")
}

func TestAttrs(t *testing.T) {
	require.Equal(t, slog.Attr{}, Error(nil))
	require.Equal(t, slog.Attr{}, Component(""))
	require.Equal(t, slog.Attr{}, Algorithm(""))
	require.Equal(t, slog.Attr{}, URL(""))
	require.Equal(t, "index", Index(2).Key)
	require.Equal(t, time.Second, Duration(time.Second).Value.Duration())
	require.Equal(t, "elapsed", Elapsed(time.Now()).Key)

	require.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}
