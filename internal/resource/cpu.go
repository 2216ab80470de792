package resource

import "github.com/shirou/gopsutil/v3/cpu"

// sampleCPUPercent returns the host-wide CPU utilisation percentage,
// averaged across all cores since the previous call. The zero interval
// makes the call non-blocking.
func sampleCPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}
