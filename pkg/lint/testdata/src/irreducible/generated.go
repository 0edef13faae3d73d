// Code generated by hand for tests. DO NOT EDIT.

package irreducible

func generatedJump(n int) int {
	i := 0
	if n > 0 {
		goto inside
	}
loop:
	i++
inside:
	i += 2
	if i < n {
		goto loop
	}
	return i
}
