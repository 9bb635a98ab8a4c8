package accelerator

import (
	"fmt"
	"testing"

	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "Defaults",
			envs: map[string]string{},
			want: Config{
				ServerURL:       DefaultServerURL,
				MaxWorkers:      chunkuploader.DefaultConcurrency(),
				ChunkSize:       200 * 1024 * 1024,
				CancelOnFailure: true,
			},
		},
		{
			name: "Every value set",
			envs: map[string]string{
				"ACCLI_TOKEN":       " token ",
				"ACCLI_SERVER_URL":  "http://localhost:8000/",
				"ACCLI_MAX_WORKERS": "3",
				"ACCLI_CHUNK_SIZE":  "5MiB",
				"ACCLI_INSECURE":    "true",
				"ACCLI_FAIL_FAST":   "false",
				"ACCLI_DEBUG":       "1",
			},
			want: Config{
				Token:              "token",
				ServerURL:          "http://localhost:8000",
				MaxWorkers:         3,
				ChunkSize:          5 * 1024 * 1024,
				InsecureSkipVerify: true,
				CancelOnFailure:    false,
				Debug:              true,
			},
		},
		{
			name:    "Invalid max workers",
			envs:    map[string]string{"ACCLI_TOKEN": "token", "ACCLI_MAX_WORKERS": "many"},
			wantErr: true,
		},
		{
			name:    "Zero max workers",
			envs:    map[string]string{"ACCLI_TOKEN": "token", "ACCLI_MAX_WORKERS": "0"},
			wantErr: true,
		},
		{
			name:    "Invalid chunk size",
			envs:    map[string]string{"ACCLI_TOKEN": "token", "ACCLI_CHUNK_SIZE": "big"},
			wantErr: true,
		},
		{
			name:    "Invalid bool",
			envs:    map[string]string{"ACCLI_TOKEN": "token", "ACCLI_FAIL_FAST": "sometimes"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadConfig(fakeEnvRepo{envVars: tt.envs})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_APIBaseURL(t *testing.T) {
	config := Config{ServerURL: "https://acceleratoapi.iiasa.ac.at"}
	assert.Equal(t, "https://acceleratoapi.iiasa.ac.at/v1/aterm-cli", config.APIBaseURL())
}

func TestConfig_UploaderConfig(t *testing.T) {
	config := Config{MaxWorkers: 2, ChunkSize: 1024, CancelOnFailure: true}

	got := config.UploaderConfig()
	assert.Equal(t, 2, got.Concurrency)
	assert.Equal(t, int64(1024), got.ChunkSize)
	assert.True(t, got.CancelOnFailure)
	assert.NotNil(t, got.HTTPClient)
}

func TestSecret_String(t *testing.T) {
	assert.Equal(t, "*****", Secret("token-123").String())
	assert.Equal(t, "", Secret("").String())
	assert.Equal(t, "*****", fmt.Sprintf("%s", Secret("token-123")))
}
