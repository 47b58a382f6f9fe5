package outbound

import (
	"testing"

	"github.com/taoyao-code/drivelink/internal/protocol/drive"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		cmd  drive.CommandType
		want int
	}{
		{drive.Sleep, PriorityEmergency},
		{drive.Drive, PriorityHigh},
		{drive.Response, PriorityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			if got := PriorityFor(tt.cmd); got != tt.want {
				t.Errorf("PriorityFor(%s) = %d, want %d", tt.cmd, got, tt.want)
			}
		})
	}
	if PriorityFor(drive.Sleep) >= PriorityFor(drive.Drive) {
		t.Fatal("sleep must outrank drive")
	}
}
