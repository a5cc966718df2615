package cron

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"five fields", "0 9 * * *", false},
		{"six fields with seconds", "30 0 9 * * *", false},
		{"steps", "*/5 * * * *", false},
		{"range and list", "0 9-17 * * MON,WED,FRI", false},
		{"names", "0 0 1 JAN *", false},
		{"empty", "", true},
		{"too few fields", "* *", true},
		{"out of range minute", "61 * * * *", true},
		{"out of range month", "0 0 1 13 *", true},
		{"garbage", "not a cron", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCron(tt.expr, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestParseCronRejectsBadTimezone(t *testing.T) {
	if _, err := ParseCron("0 9 * * *", "Not/AZone"); err == nil {
		t.Error("expected timezone error")
	}
	if _, err := ParseCron("0 9 * * *", "America/New_York"); err != nil {
		t.Errorf("valid timezone rejected: %v", err)
	}
}

func TestIntervalValidation(t *testing.T) {
	if _, err := Interval(0); err == nil {
		t.Error("zero interval accepted")
	}
	if _, err := Interval(-time.Second); err == nil {
		t.Error("negative interval accepted")
	}
	if _, err := Interval(5 * time.Minute); err != nil {
		t.Errorf("valid interval rejected: %v", err)
	}
}

func TestIntervalNext(t *testing.T) {
	sched, err := Interval(10 * time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := sched.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	if want := now.Add(10 * time.Minute); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCronNext(t *testing.T) {
	sched, err := ParseCron("0 9 * * *", "")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, err := sched.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCronNextNoDrift(t *testing.T) {
	sched, err := Interval(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// A handler that finished 10 minutes late reschedules from the
	// current clock, not from the intended fire time.
	finished := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	next, err := sched.Next(finished)
	if err != nil {
		t.Fatal(err)
	}
	if want := finished.Add(time.Hour); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}
