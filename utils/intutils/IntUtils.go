package intutils

// Min calculates and returns the minimum integer in a list
func Min(ints ...int) int {
	min := ints[0]
	for _, val := range ints {
		if val < min {
			min = val
		}
	}
	return min
}

// Max calculates and returns the maximum int in a list
func Max(ints ...int) int {
	max := ints[0]
	for _, val := range ints {
		if val > max {
			max = val
		}
	}
	return max
}

// NextPowerOfTwo returns the smallest power of two that is greater
// than or equal to n. For n < 1, it returns 1.
func NextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power *= 2
	}
	return power
}
