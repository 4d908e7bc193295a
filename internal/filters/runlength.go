package filters

import "bytes"

// RunLengthDecode expands RunLengthDecode data. A length byte n in 0..127
// copies the next n+1 bytes, 129..255 repeats the next byte 257-n times and
// 128 marks the end of data.
func RunLengthDecode(data []byte) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			end := i + n + 1
			if end > len(data) {
				end = len(data)
			}
			out.Write(data[i:end])
			i = end
		default:
			if i >= len(data) {
				return out.Bytes(), nil
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}
