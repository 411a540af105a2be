// Copyright 2026 The HardenMQTT Authors
// SPDX-License-Identifier: Apache-2.0

package troll

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseISODuration and formatISODuration handle the PnDTnHnMnS form, a
// superset of the canonical encoder's PTnHnMnS rendering (see
// canon.InteroperableBytes); formatISODuration emits a day component
// when the duration spans at least one day. They are kept here because the mutator operates on raw duration text received over the
// wire, not on a decoded interop.Field.
func parseISODuration(s string) (time.Duration, error) {
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("troll: missing P prefix")
	}
	s = s[1:]
	var days int64
	if idx := strings.Index(s, "D"); idx >= 0 {
		n, err := strconv.ParseInt(s[:idx], 10, 64)
		if err != nil {
			return 0, err
		}
		days = n
		s = s[idx+1:]
	}
	var total time.Duration
	if strings.HasPrefix(s, "T") {
		s = s[1:]
		number := strings.Builder{}
		for _, r := range s {
			switch r {
			case 'H':
				n, err := strconv.ParseInt(number.String(), 10, 64)
				if err != nil {
					return 0, err
				}
				total += time.Duration(n) * time.Hour
				number.Reset()
			case 'M':
				n, err := strconv.ParseInt(number.String(), 10, 64)
				if err != nil {
					return 0, err
				}
				total += time.Duration(n) * time.Minute
				number.Reset()
			case 'S':
				n, err := strconv.ParseFloat(number.String(), 64)
				if err != nil {
					return 0, err
				}
				total += time.Duration(n * float64(time.Second))
				number.Reset()
			default:
				number.WriteRune(r)
			}
		}
	}
	total += time.Duration(days) * 24 * time.Hour
	return sign * total, nil
}

func formatISODuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := d.Seconds()

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString("P")
	if days != 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	b.WriteString("T")
	fmt.Fprintf(&b, "%dH%dM%sS", hours, minutes, strconv.FormatFloat(seconds, 'f', -1, 64))
	return b.String()
}
