package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name    string
		env     string // .env 内容, 为空表示不创建文件
		preset  map[string]string
		want    Credentials
		wantErr error
	}{
		{
			name: "从.env读取",
			env:  "TIKTOK_ACCOUNT=someone@example.com\nTIKTOK_PASSWORD=s3cret\n",
			want: Credentials{Account: "someone@example.com", Password: "s3cret"},
		},
		{
			name:   "环境变量优先于.env",
			env:    "TIKTOK_ACCOUNT=file\nTIKTOK_PASSWORD=file\n",
			preset: map[string]string{EnvAccount: "shell", EnvPassword: "shellpw"},
			want:   Credentials{Account: "shell", Password: "shellpw"},
		},
		{
			name:    ".env不存在且没有环境变量",
			wantErr: ErrMissingCredentials,
		},
		{
			name:    "缺少密码",
			env:     "TIKTOK_ACCOUNT=someone\n",
			want:    Credentials{Account: "someone"},
			wantErr: ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv 在测试结束后恢复原值
			t.Setenv(EnvAccount, "")
			t.Setenv(EnvPassword, "")
			os.Unsetenv(EnvAccount)
			os.Unsetenv(EnvPassword)
			for k, v := range tt.preset {
				t.Setenv(k, v)
			}

			envFile := filepath.Join(t.TempDir(), ".env")
			if tt.env != "" {
				if err := os.WriteFile(envFile, []byte(tt.env), 0600); err != nil {
					t.Fatal(err)
				}
			}

			got, err := LoadCredentials(envFile)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadCredentials() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LoadCredentials() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
