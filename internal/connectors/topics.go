package connectors

// Bus topics shared by the kettle service and its consumers.
const (
	TopicConnStatus    = "conn.status"
	TopicStateChange   = "kettle.change"
	TopicCommandResult = "kettle.command"
	TopicRawFrameIn    = "raw.frame.in"
	TopicRawFrameOut   = "raw.frame.out"
)
