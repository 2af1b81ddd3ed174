package boot

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		cmd      string
		wantProg Program
		wantPIDs []int
	}{
		{"malloc", ProgramMalloc, []int{1}},
		{"alloctests", ProgramAllocTests, []int{1}},
		{"test", ProgramFork, []int{1}},
		{"test2", ProgramFork, []int{1, 2}},
		{"unknown-token", ProgramDefault, []int{1}},
		{"", ProgramDefault, []int{1}},
	}

	for _, tt := range tests {
		got := ParseCommand(tt.cmd)
		if got.Program != tt.wantProg {
			t.Errorf("ParseCommand(%q).Program = %v; want %v", tt.cmd, got.Program, tt.wantProg)
		}
		if len(got.PIDs) != len(tt.wantPIDs) {
			t.Fatalf("ParseCommand(%q).PIDs = %v; want %v", tt.cmd, got.PIDs, tt.wantPIDs)
		}
		for i := range tt.wantPIDs {
			if got.PIDs[i] != tt.wantPIDs[i] {
				t.Errorf("ParseCommand(%q).PIDs[%d] = %d; want %d", tt.cmd, i, got.PIDs[i], tt.wantPIDs[i])
			}
		}
	}
}

func TestImageSizedByProgram(t *testing.T) {
	a := Image(ProgramDefault)
	b := Image(ProgramAllocTests)
	if len(a) == 0 || len(b) == 0 {
		t.Fatal("expected non-empty canned images")
	}
	if len(a) == len(b) {
		t.Fatal("expected different programs to have distinct image sizes")
	}
}
