// Package status builds point-in-time snapshots of a dispatch session and publishes them as JSON, prometheus
// gauges or HTTP pushes.
package status

import (
	"time"
)

// Attack modes. Values follow hashcat's -a numbers.
const (
	AttackModeDictionary = 0 // AttackModeDictionary is a straight wordlist attack.
	AttackModeCombinator = 1 // AttackModeCombinator pairs every left word with every right word.
	AttackModeMask       = 3 // AttackModeMask is a brute-force mask attack.
)

// NotAvailable is reported in place of figures of a skipped device.
const NotAvailable = "N/A"

// Guess describes the candidate source of the running segment.
type Guess struct {
	Base        string  `json:"guess_base"`         // Base names the wordlist or mask being consumed.
	BaseCount   int     `json:"guess_base_count"`   // BaseCount is the number of segments in the attack.
	BaseOffset  int     `json:"guess_base_offset"`  // BaseOffset is the 1-based position of the current segment.
	BasePercent float64 `json:"guess_base_percent"` // BasePercent is BaseOffset over BaseCount.
	Mod         string  `json:"guess_mod"`          // Mod names the right-hand wordlist of a combinator attack.
	Mode        int     `json:"guess_mode"`         // Mode is the attack mode.
}

// Device is the per-device part of a snapshot.
type Device struct {
	DeviceID   int     `json:"device_id"`
	DeviceName string  `json:"device_name"`
	DeviceType string  `json:"device_type"`
	Skipped    bool    `json:"skipped"`
	Speed      float64 `json:"speed"`      // Speed is hashes per second; zero when skipped.
	SpeedText  string  `json:"speed_text"` // SpeedText is the humanized speed, or N/A when skipped.
	ExecMs     float64 `json:"exec_ms"`
	Cracked    uint64  `json:"cracked"`
	Util       int     `json:"util"` // Util is percent utilization, -1 when unknown.
	Temp       int     `json:"temp"` // Temp is degrees Celsius, -1 when unknown.
}

// CPT holds the cracks-per-time windows.
type CPT struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
	Day    int `json:"day"`
}

// Snapshot is one consistent status report.
type Snapshot struct {
	Time time.Time `json:"time"`

	Session         string   `json:"session"`
	Status          int      `json:"status"`      // Status is the numeric run status.
	StatusText      string   `json:"status_text"` // StatusText is the human-readable run status.
	Target          string   `json:"target"`
	Guess           Guess    `json:"guess"`
	Progress        []uint64 `json:"progress"` // Progress is [current, end] in candidate-salt pairs.
	ProgressPercent float64  `json:"progress_percent"`
	RestorePoint    uint64   `json:"restore_point"`
	RestorePercent  float64  `json:"restore_percent"`
	RecoveredHashes []int    `json:"recovered_hashes"` // RecoveredHashes is [done, total].
	RecoveredSalts  []int    `json:"recovered_salts"`  // RecoveredSalts is [done, total].
	Rejected        uint64   `json:"rejected"`
	Restored        uint64   `json:"restored"`
	Devices         []Device `json:"devices"`
	DevicesActive   int      `json:"devices_active"`
	Speed           float64  `json:"speed"` // Speed is the sum over active devices, hashes per second.
	CPT             CPT      `json:"cpt"`

	Runtime       time.Duration `json:"runtime"`
	ETA           time.Duration `json:"eta"`            // ETA is zero when the speed is unknown.
	TimeStart     int64         `json:"time_start"`     // TimeStart is a unix timestamp.
	EstimatedStop int64         `json:"estimated_stop"` // EstimatedStop is a unix timestamp, zero when unknown.
}

// Done reports whether the snapshot shows a finished run.
func (s Snapshot) Done() bool {
	return len(s.Progress) == 2 && s.Progress[0] >= s.Progress[1]
}
