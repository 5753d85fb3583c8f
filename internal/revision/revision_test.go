package revision

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Revision
		wantErr bool
	}{
		{
			name:  "dated snapshot",
			input: "live-20230101:aaa111",
			want:  Revision{Branch: "live-20230101", SHA: "aaa111"},
		},
		{
			name:  "versioned snapshot",
			input: "live-20230115.2:bbb222",
			want:  Revision{Branch: "live-20230115.2", SHA: "bbb222"},
		},
		{
			name:  "sha containing colon splits at first colon",
			input: "live-20230101:abc:def",
			want:  Revision{Branch: "live-20230101", SHA: "abc:def"},
		},
		{
			name:    "test branch rejected",
			input:   "test-live-20230101:aaa111",
			wantErr: true,
		},
		{
			name:    "arbitrary branch rejected",
			input:   "main:aaa111",
			wantErr: true,
		},
		{
			name:    "missing colon rejected",
			input:   "live-20230101",
			wantErr: true,
		},
		{
			name:    "empty string rejected",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, expected %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_ErrorNamesExpectedFormat(t *testing.T) {
	_, err := Parse("garbage")
	if err == nil {
		t.Fatal("expected error for malformed revision")
	}

	var invalid *InvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidError, got %T", err)
	}
	if invalid.Value != "garbage" {
		t.Errorf("InvalidError.Value = %q, expected %q", invalid.Value, "garbage")
	}
	if !strings.Contains(err.Error(), ExpectedFormat) {
		t.Errorf("error %q does not mention expected format %q", err.Error(), ExpectedFormat)
	}
}

func TestValid(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{"live-20230101:aaa111", true},
		{"live-20230115.2:bbb222", true},
		{"live-x:y", true},
		{"test-live-20230101:aaa111", false},
		{"main:abc", false},
		{"live-20230101", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := Valid(tc.input); got != tc.expected {
			t.Errorf("Valid(%q) = %v, expected %v", tc.input, got, tc.expected)
		}
	}
}

func TestRevision_RoundTrip(t *testing.T) {
	const s = "live-20230101:aaa111"
	rev, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", s, err)
	}
	if rev.String() != s {
		t.Errorf("String() = %q, expected %q", rev.String(), s)
	}
}

func TestRevision_ShortSHA(t *testing.T) {
	testCases := []struct {
		sha      string
		expected string
	}{
		{"abc1234567890def", "abc1234"},
		{"abc1234", "abc1234"},
		{"abc", "abc"},
	}

	for _, tc := range testCases {
		rev := Revision{Branch: "live-20230101", SHA: tc.sha}
		if got := rev.ShortSHA(); got != tc.expected {
			t.Errorf("ShortSHA() for %q = %q, expected %q", tc.sha, got, tc.expected)
		}
	}
}

func TestBranchPrefixes(t *testing.T) {
	testCases := []struct {
		branch string
		live   bool
		test   bool
	}{
		{"live-20230101", true, false},
		{"live-20230101.3", true, false},
		{"test-live-20230101", false, true},
		{"main", false, false},
		{"liveish", false, false},
	}

	for _, tc := range testCases {
		if got := IsLiveBranch(tc.branch); got != tc.live {
			t.Errorf("IsLiveBranch(%q) = %v, expected %v", tc.branch, got, tc.live)
		}
		if got := IsTestBranch(tc.branch); got != tc.test {
			t.Errorf("IsTestBranch(%q) = %v, expected %v", tc.branch, got, tc.test)
		}
	}
}

func TestParseSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		want   Snapshot
		ok     bool
	}{
		{"bare date", "live-20230101", Snapshot{Date: "20230101"}, true},
		{"versioned", "live-20230101.3", Snapshot{Date: "20230101", Ver: 3}, true},
		{"short date", "live-2023", Snapshot{}, false},
		{"test branch", "test-live-20230101", Snapshot{}, false},
		{"non-numeric version", "live-20230101.x", Snapshot{}, false},
		{"trailing garbage", "live-20230101x", Snapshot{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSnapshot(tt.branch)
			if ok != tt.ok {
				t.Fatalf("ParseSnapshot(%q) ok = %v, expected %v", tt.branch, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseSnapshot(%q) = %+v, expected %+v", tt.branch, got, tt.want)
			}
		})
	}
}

func TestSnapshot_BranchName(t *testing.T) {
	if got := (Snapshot{Date: "20230101"}).BranchName(); got != "live-20230101" {
		t.Errorf("bare snapshot name = %q", got)
	}
	if got := (Snapshot{Date: "20230101", Ver: 2}).BranchName(); got != "live-20230101.2" {
		t.Errorf("versioned snapshot name = %q", got)
	}
}

func TestNewestSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		branches []string
		want     string
		ok       bool
	}{
		{
			name:     "later date wins",
			branches: []string{"live-20230101", "live-20230115", "live-20230108"},
			want:     "live-20230115",
			ok:       true,
		},
		{
			name:     "version breaks date tie",
			branches: []string{"live-20230115", "live-20230115.2", "live-20230115.1"},
			want:     "live-20230115.2",
			ok:       true,
		},
		{
			name:     "non-snapshots ignored",
			branches: []string{"main", "test-live-20230120", "live-20230101"},
			want:     "live-20230101",
			ok:       true,
		},
		{
			name:     "no snapshots",
			branches: []string{"main", "develop"},
			ok:       false,
		},
		{
			name:     "empty list",
			branches: nil,
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewestSnapshot(tt.branches)
			if ok != tt.ok {
				t.Fatalf("NewestSnapshot ok = %v, expected %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("NewestSnapshot = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestNextSnapshotName(t *testing.T) {
	day := time.Date(2023, time.January, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		branches []string
		want     string
	}{
		{
			name:     "first snapshot of the day",
			branches: []string{"live-20230101", "main"},
			want:     "live-20230115",
		},
		{
			name:     "bare name taken",
			branches: []string{"live-20230115"},
			want:     "live-20230115.1",
		},
		{
			name:     "versions taken",
			branches: []string{"live-20230115", "live-20230115.1", "live-20230115.3"},
			want:     "live-20230115.4",
		},
		{
			name:     "other dates do not count",
			branches: []string{"live-20230114", "live-20230114.5"},
			want:     "live-20230115",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSnapshotName(day, tt.branches); got != tt.want {
				t.Errorf("NextSnapshotName = %q, expected %q", got, tt.want)
			}
		})
	}
}
