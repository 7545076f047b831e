package reffs

// makeSpecial builds the payload for a device, fifo or socket node created
// via mknod (spec §3 "Special: character/block device, FIFO, or socket").
// tag is derived by the caller from the mode bits passed to mknod; dev
// only applies to the two device tags.
func makeSpecial(tag SpecialTag, dev uint64) specialPayload {
	if tag != SpecialCharDev && tag != SpecialBlockDev {
		dev = 0
	}
	return specialPayload{Tag: tag, Dev: dev}
}

func (in *inode) specialInfo() specialPayload {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.special
}

func (in *inode) symlinkTarget() string {
	in.metaMu.RLock()
	defer in.metaMu.RUnlock()
	return in.target
}
