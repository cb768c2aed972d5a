/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package stringutil

import "strings"

// NormalizeName trims whitespace and lower-cases a name for comparisons.
func NormalizeName(str string) string {
	return strings.ToLower(strings.TrimSpace(str))
}

// StrCaseEqual reports whether two strings are equal after normalization.
func StrCaseEqual(str1, str2 string) bool {
	return NormalizeName(str1) == NormalizeName(str2)
}

// ContainsFold reports whether s contains substr, case-insensitively.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Split splits str by sep and removes blank entries.
func Split(str, sep string) []string {
	var result []string
	for _, val := range strings.Split(str, sep) {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}
