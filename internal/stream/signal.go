package stream

import "syscall"

// termSignal is sent to request graceful shutdown of an encoder or PAD
// process before Kill is used as a last resort.
const termSignal = syscall.SIGTERM
