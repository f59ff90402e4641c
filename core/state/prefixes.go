package state

var (
	treasuryPrefix      = []byte("treasury:")
	promisePrefix       = []byte("promise:")
	promiseIndexPrefix  = []byte("treasury-promises:")
	custodyPrefix       = []byte("custody:")
	mintPrefix          = []byte("mint:")
	nativeAccountPrefix = []byte("native:")
	sequenceKey         = []byte("runtime:sequence")
	genesisKey          = []byte("runtime:genesis")
)
