package interp

var RoundForMultiply = roundForMultiply
