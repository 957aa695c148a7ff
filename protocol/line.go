package protocol

// AppendSampleLine writes one sample line:
//
//	Smp 00042 | ADC: 2048 | V: 1.650 V\r\n
//
// index is reduced modulo SampleIndexModulo. Formatting avoids fmt so the
// same code runs on the firmware.
func AppendSampleLine(out OutputBuffer, index uint32, raw uint16, milliVolts uint32) {
	out.Output([]byte("Smp "))
	appendUint(out, index%SampleIndexModulo, 5, '0')
	out.Output([]byte(" | ADC: "))
	appendUint(out, uint32(raw), 4, ' ')
	out.Output([]byte(" | V: "))
	appendVolts(out, milliVolts)
	out.Output([]byte(" V" + LineTerminator))
}

// AppendStatsLine writes the periodic window summary:
//
//	Stats n=1024 | min: 0.000 V | max: 3.300 V | avg: 1.650 V\r\n
func AppendStatsLine(out OutputBuffer, count, minMV, maxMV, meanMV uint32) {
	out.Output([]byte("Stats n="))
	appendUint(out, count, 0, ' ')
	out.Output([]byte(" | min: "))
	appendVolts(out, minMV)
	out.Output([]byte(" V | max: "))
	appendVolts(out, maxMV)
	out.Output([]byte(" V | avg: "))
	appendVolts(out, meanMV)
	out.Output([]byte(" V" + LineTerminator))
}

// FormatVolts renders millivolts as "W.DDD" (truncating, no rounding).
func FormatVolts(milliVolts uint32) string {
	var s ScratchOutput
	appendVolts(&s, milliVolts)
	return string(s.Result())
}

func appendVolts(out OutputBuffer, milliVolts uint32) {
	appendUint(out, milliVolts/1000, 0, ' ')
	out.Output([]byte{'.'})
	appendUint(out, milliVolts%1000, 3, '0')
}

// appendUint writes n in decimal, left-padded with pad to at least width.
func appendUint(out OutputBuffer, n uint32, width int, pad byte) {
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}

	for digits := len(buf) - pos; digits < width; digits++ {
		out.Output([]byte{pad})
	}
	out.Output(buf[pos:])
}
