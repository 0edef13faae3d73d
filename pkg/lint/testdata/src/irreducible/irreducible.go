package irreducible

func jumpIn(n int) int { // want `irreducible control flow in jumpIn: loop at b\d+ has 2 entries`
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

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		if x < 0 {
			continue
		}
		total += x
	}
	return total
}

func classify(x int) string {
	switch {
	case x < 0:
		return "negative"
	case x == 0:
		return "zero"
	}
	return "positive"
}

func retry(attempts int) int {
	n := 0
again:
	n++
	if n < attempts {
		goto again
	}
	return n
}
