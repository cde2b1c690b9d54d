package ospf

// Fletcher16 computes the RFC 2328 Appendix C / RFC 905 Annex B checksum
// used for LSA checksums. data is the LSA starting at the LS-Type field
// (i.e. the header with LS-Age excluded) through the end of the body;
// cPos is the zero-based offset of the two checksum bytes within data
// (for an LSA header, offset 14: LS-type(1)+options... - callers pass the
// offset of the Checksum field measured from the start of data).
func Fletcher16(data []byte, cPos int) uint16 {
	var c0, c1 int32
	length := len(data)

	for i := 0; i < length; i++ {
		var v int32
		if i == cPos || i == cPos+1 {
			v = 0
		} else {
			v = int32(data[i])
		}
		c0 = (c0 + v) % 255
		c1 = (c1 + c0) % 255
	}

	var x, y int32
	x = ((int32(length-cPos-1))*c0 - c1) % 255
	if x <= 0 {
		x += 255
	}
	y = 510 - c0 - x
	if y > 255 {
		y -= 255
	}

	return uint16(x)<<8 | uint16(y&0xff)
}
